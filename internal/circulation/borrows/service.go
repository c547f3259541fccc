package borrows

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/metrics"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Repository --------------

// Repository は貸出台帳の永続化層。WithinTx の fn は1トランザクション内で実行され、
// エラーを返せば全てロールバックされる。fn は再実行されることがある。
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	List(ctx context.Context, f Filter, p Page) ([]BorrowView, int64, error)
}

// Tx はトランザクション内で使える操作。
type Tx interface {
	// LockBook は在庫行を排他ロックして読む。無ければ NOT_FOUND。
	LockBook(ctx context.Context, bookID string) (BookStock, error)
	HasOpenBorrow(ctx context.Context, studentID, bookID string) (bool, error)
	// InsertBorrow は未返却の重複があれば CONFLICT を返す。
	InsertBorrow(ctx context.Context, b Borrow) error
	FindBorrow(ctx context.Context, borrowID string) (Borrow, error)
	LockBorrow(ctx context.Context, borrowID string) (Borrow, error)
	// MarkReturned は未返却の行にだけ返却日時を設定する。返却済みなら CONFLICT。
	MarkReturned(ctx context.Context, borrowID string, at time.Time) error
	// AdjustAvailable は 0 <= available <= total を満たす場合のみ在庫を delta だけ動かす。
	AdjustAvailable(ctx context.Context, bookID string, delta int) error
	GetView(ctx context.Context, borrowID string) (BorrowView, error)
}

// -------------- Service --------------

type Service struct {
	repo    Repository
	clock   Clock
	id      IDGen
	loan    time.Duration
	metrics metrics.Recorder
}

func NewService(repo Repository, loanDays int, rec metrics.Recorder) *Service {
	if loanDays <= 0 {
		loanDays = 14
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		clock:   realClock{},
		id:      ulidGen{},
		loan:    time.Duration(loanDays) * 24 * time.Hour,
		metrics: rec,
	}
}

// POST /borrow
func (s *Service) Borrow(ctx context.Context, p auth.Principal, bookID string) (BorrowResponse, error) {
	res, err := s.borrow(ctx, p, bookID)
	s.metrics.RecordBorrow(resultLabel(err))
	return res, err
}

func (s *Service) borrow(ctx context.Context, p auth.Principal, bookID string) (BorrowResponse, error) {
	if p.UserID == "" {
		return BorrowResponse{}, ErrUnauthenticated("authentication required")
	}
	// ロール判定を引数チェックより先に行う
	if !Authorize(p, OpBorrow, Ownership{}) {
		return BorrowResponse{}, ErrForbidden("only students can borrow books")
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return BorrowResponse{}, ErrInvalid("bookId required")
	}

	now := s.clock.Now()
	var view BorrowView
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book.Available <= 0 {
			return ErrUnavailable("book is not available for borrowing")
		}

		open, err := tx.HasOpenBorrow(ctx, p.UserID, bookID)
		if err != nil {
			return err
		}
		if open {
			return ErrConflict("book already borrowed and not yet returned")
		}

		b := Borrow{
			ID:         s.id.NewULID(now),
			StudentID:  p.UserID,
			BookID:     bookID,
			BorrowedAt: now,
			DueAt:      now.Add(s.loan),
		}
		if err := tx.InsertBorrow(ctx, b); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, bookID, -1); err != nil {
			return err
		}

		view, err = tx.GetView(ctx, b.ID)
		return err
	})
	if err != nil {
		return BorrowResponse{}, err
	}
	return toResponse(view, now), nil
}

// PUT /borrow/:borrowId/return
func (s *Service) Return(ctx context.Context, p auth.Principal, borrowID string) (BorrowResponse, error) {
	res, err := s.returnBook(ctx, p, borrowID)
	s.metrics.RecordReturn(resultLabel(err))
	return res, err
}

func (s *Service) returnBook(ctx context.Context, p auth.Principal, borrowID string) (BorrowResponse, error) {
	if p.UserID == "" {
		return BorrowResponse{}, ErrUnauthenticated("authentication required")
	}
	borrowID = strings.TrimSpace(borrowID)
	if borrowID == "" {
		return BorrowResponse{}, ErrInvalid("borrowId required")
	}

	now := s.clock.Now()
	var view BorrowView
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.FindBorrow(ctx, borrowID)
		if err != nil {
			return err
		}
		// ロック順序は貸出と同じ books → borrows
		book, err := tx.LockBook(ctx, cur.BookID)
		if err != nil {
			return err
		}
		b, err := tx.LockBorrow(ctx, borrowID)
		if err != nil {
			return err
		}
		if !b.Open() {
			return ErrConflict("book has already been returned")
		}
		if !Authorize(p, OpReturn, Ownership{StudentID: b.StudentID, LibraryID: book.LibraryID}) {
			return ErrForbidden("not allowed to return this borrow")
		}

		if err := tx.MarkReturned(ctx, borrowID, now); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, b.BookID, +1); err != nil {
			return err
		}

		view, err = tx.GetView(ctx, borrowID)
		return err
	})
	if err != nil {
		return BorrowResponse{}, err
	}
	return toResponse(view, now), nil
}

// GET /borrow/status
// 学生は自分の記録、オーナーは自館、管理者は全件。新しい貸出順。
func (s *Service) List(ctx context.Context, p auth.Principal, f Filter, pg Page) (ListResult, error) {
	if p.UserID == "" {
		return ListResult{}, ErrUnauthenticated("authentication required")
	}
	scope, ok := ScopeFor(p)
	if !ok {
		return ListResult{}, ErrForbidden("not allowed to view borrow records")
	}
	if !scope.All {
		if scope.StudentID != "" {
			f.StudentID = scope.StudentID
		}
		if scope.LibraryID != "" {
			f.LibraryID = scope.LibraryID
		}
	}
	pg = pg.normalize()

	rows, total, err := s.repo.List(ctx, f, pg)
	if err != nil {
		return ListResult{}, err
	}

	now := s.clock.Now()
	items := make([]BorrowResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResponse(r, now))
	}

	next := pg.Offset + pg.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}
