package books

import "time"

// ===== Requests =====

type CreateBookRequest struct {
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	LibraryID   string `json:"libraryId"` // LIBRARY_OWNER は省略可（自館になる）
	TotalCopies int    `json:"totalCopies"`
}

type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	TotalCopies *int    `json:"totalCopies,omitempty"`
}

// ===== Responses =====

type BookResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	LibraryID       string    `json:"libraryId"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ListResult struct {
	Items      []BookResponse `json:"items"`
	Total      int64          `json:"total"`
	NextOffset int            `json:"nextOffset"`
}

// ===== Listing helpers =====

type Page struct {
	Limit  int
	Offset int
}

type SearchQuery struct {
	Q         string // タイトル・著者の部分一致
	LibraryID string
}
