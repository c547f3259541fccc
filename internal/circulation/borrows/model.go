package borrows

import "time"

// Borrow は borrows テーブルの1行。ReturnedAt が nil の間は貸出中。
type Borrow struct {
	ID         string
	StudentID  string
	BookID     string
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
}

func (b Borrow) Open() bool { return b.ReturnedAt == nil }

// BookStock は在庫行（FOR UPDATE でロックして読む）
type BookStock struct {
	ID        string
	LibraryID string
	Total     int
	Available int
}

// BorrowView は一覧・レスポンス用に学生名と書籍情報を結合したもの。
type BorrowView struct {
	Borrow
	StudentName   string
	BookTitle     string
	BookAuthor    string
	BookLibraryID string
}

type Filter struct {
	StudentID string
	LibraryID string
	OnlyOpen  bool
}

type Page struct {
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
