package students

import "time"

type Student struct {
	ID        string
	Name      string
	Phone     string
	LibraryID string
	FeesDue   bool
	FeeDueOn  *time.Time
	CreatedAt time.Time
}

type CreateStudentRequest struct {
	ID        string `json:"id" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	LibraryID string `json:"libraryId"`
}

// FeeDueOn は "2006-01-02" 形式。FeesDue=false のときは無視してクリアする
type UpdateFeesRequest struct {
	FeesDue  *bool   `json:"feesDue" binding:"required"`
	FeeDueOn *string `json:"feeDueOn"`
}

type StudentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	LibraryID string    `json:"libraryId"`
	FeesDue   bool      `json:"feesDue"`
	FeeDueOn  *string   `json:"feeDueOn,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListResult struct {
	Items      []StudentResponse `json:"items"`
	Total      int64             `json:"total"`
	NextOffset int               `json:"nextOffset"`
}

type Page struct {
	Limit  int
	Offset int
}

const dateLayout = "2006-01-02"

func toResponse(s *Student) StudentResponse {
	r := StudentResponse{
		ID:        s.ID,
		Name:      s.Name,
		Phone:     s.Phone,
		LibraryID: s.LibraryID,
		FeesDue:   s.FeesDue,
		CreatedAt: s.CreatedAt,
	}
	if s.FeeDueOn != nil {
		d := s.FeeDueOn.Format(dateLayout)
		r.FeeDueOn = &d
	}
	return r
}
