package books

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/db"
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type Service struct {
	db    *sql.DB
	store *Store
	clock Clock
	id    IDGen
	retry db.RetryPolicy
}

func NewService(conn *sql.DB, retry db.RetryPolicy) *Service {
	return &Service{
		db:    conn,
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
		retry: retry,
	}
}

// CanManage は p が libraryID の蔵書を編集できるか。ADMIN は全館、LIBRARY_OWNER は自館のみ。
func CanManage(p auth.Principal, libraryID string) bool {
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleLibraryOwner:
		return p.LibraryID != "" && p.LibraryID == libraryID
	}
	return false
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateBookRequest) (BookResponse, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.LibraryID = strings.TrimSpace(in.LibraryID)
	if in.Title == "" || in.Author == "" {
		return BookResponse{}, ErrInvalid("title and author are required")
	}
	if in.TotalCopies < 0 {
		return BookResponse{}, ErrInvalid("totalCopies must be >= 0")
	}
	// オーナーは自館に強制
	if p.Role == auth.RoleLibraryOwner && in.LibraryID == "" {
		in.LibraryID = p.LibraryID
	}
	if in.LibraryID == "" {
		return BookResponse{}, ErrInvalid("libraryId required")
	}
	if !CanManage(p, in.LibraryID) {
		return BookResponse{}, ErrForbidden("cannot add books to this library")
	}

	id := s.id.NewULID(s.clock.Now())
	if err := s.store.Insert(ctx, id, in); err != nil {
		if db.IsForeignKeyViolation(err) {
			return BookResponse{}, ErrInvalid("unknown libraryId")
		}
		return BookResponse{}, err
	}
	return s.store.Get(ctx, s.db, id)
}

func (s *Service) Get(ctx context.Context, id string) (BookResponse, error) {
	return s.store.Get(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, q SearchQuery, p Page) (ListResult, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	items, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return ListResult{}, err
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// Update: totalCopies を変えた分だけ availableCopies もずらす。
// 貸出中の冊数を下回る総数にはできない。
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in UpdateBookRequest) (BookResponse, error) {
	if in.TotalCopies != nil && *in.TotalCopies < 0 {
		return BookResponse{}, ErrInvalid("totalCopies must be >= 0")
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return BookResponse{}, ErrInvalid("title must not be empty")
	}
	if in.Author != nil && strings.TrimSpace(*in.Author) == "" {
		return BookResponse{}, ErrInvalid("author must not be empty")
	}

	var out BookResponse
	err := db.RunInTxWithRetry(ctx, s.db, nil, s.retry, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !CanManage(p, cur.LibraryID) {
			return ErrForbidden("cannot edit books of this library")
		}

		next := cur
		if in.Title != nil {
			next.Title = strings.TrimSpace(*in.Title)
		}
		if in.Author != nil {
			next.Author = strings.TrimSpace(*in.Author)
		}
		if in.TotalCopies != nil {
			onLoan := cur.TotalCopies - cur.AvailableCopies
			if *in.TotalCopies < onLoan {
				return ErrConflict("totalCopies is below the number of copies on loan")
			}
			next.TotalCopies = *in.TotalCopies
			next.AvailableCopies = cur.AvailableCopies + (*in.TotalCopies - cur.TotalCopies)
		}
		if err := s.store.Update(ctx, tx, next); err != nil {
			return err
		}
		out, err = s.store.Get(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	cur, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !CanManage(p, cur.LibraryID) {
		return ErrForbidden("cannot delete books of this library")
	}
	return s.store.Delete(ctx, id)
}
