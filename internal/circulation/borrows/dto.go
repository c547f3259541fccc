package borrows

import "time"

type Status string

const (
	StatusBorrowed Status = "BORROWED"
	StatusOverdue  Status = "OVERDUE"
	StatusReturned Status = "RETURNED"
)

// POST /borrow
type BorrowRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

type StudentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BookSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	LibraryID string `json:"libraryId"`
}

type BorrowResponse struct {
	ID         string         `json:"id"`
	StudentID  string         `json:"studentId"`
	BookID     string         `json:"bookId"`
	BorrowDate time.Time      `json:"borrowDate"`
	DueDate    time.Time      `json:"dueDate"`
	ReturnDate *time.Time     `json:"returnDate,omitempty"`
	Status     Status         `json:"status"`
	Overdue    bool           `json:"overdue"`
	Student    StudentSummary `json:"student"`
	Book       BookSummary    `json:"book"`
}

type ListResult struct {
	Items      []BorrowResponse `json:"items"`
	Total      int64            `json:"total"`
	NextOffset int              `json:"nextOffset"`
}

func toResponse(v BorrowView, now time.Time) BorrowResponse {
	overdue := v.Open() && now.After(v.DueAt)
	status := StatusBorrowed
	switch {
	case !v.Open():
		status = StatusReturned
	case overdue:
		status = StatusOverdue
	}
	return BorrowResponse{
		ID:         v.ID,
		StudentID:  v.StudentID,
		BookID:     v.BookID,
		BorrowDate: v.BorrowedAt,
		DueDate:    v.DueAt,
		ReturnDate: v.ReturnedAt,
		Status:     status,
		Overdue:    overdue,
		Student:    StudentSummary{ID: v.StudentID, Name: v.StudentName},
		Book:       BookSummary{ID: v.BookID, Title: v.BookTitle, Author: v.BookAuthor, LibraryID: v.BookLibraryID},
	}
}
