package withdrawals

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LIBRA-backend/internal/circulation/books"
	"LIBRA-backend/internal/platform/auth"
	"LIBRA-backend/internal/platform/db"
)

// ---- Error model ----
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string       { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrNotFound(msg string) *APIError  { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError  { return &APIError{Code: CodeConflict, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// ---- Clock & ID ----
type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ---- Service ----

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

// POST /books/:bookId/withdrawals
// 貸出中の冊数には手を付けない。貸出可能な冊数からのみ除籍できる。
func (s *Service) Create(ctx context.Context, p auth.Principal, bookID string, in CreateWithdrawalRequest) (WithdrawalResponse, error) {
	if in.Quantity <= 0 {
		return WithdrawalResponse{}, ErrInvalid("quantity must be > 0")
	}

	var resp WithdrawalResponse
	err := db.RunInTxWithRetry(ctx, s.db, nil, s.retry, func(ctx context.Context, tx db.DBTX) error {
		now := s.clock.Now()

		// 在庫ロック & チェック
		st, err := s.store.LockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !books.CanManage(p, st.libraryID) {
			return ErrForbidden("cannot withdraw books of this library")
		}
		if in.Quantity > st.available {
			return ErrConflict("not enough available copies")
		}

		if err := s.store.RemoveCopies(ctx, tx, bookID, in.Quantity); err != nil {
			return err
		}

		w := Withdrawal{
			ID:            s.id.NewULID(now),
			BookID:        bookID,
			Quantity:      in.Quantity,
			Reason:        toNullString(in.Reason),
			ProcessedByID: toNullString(&p.UserID),
			WithdrawnAt:   sql.NullTime{Time: now, Valid: true},
		}
		if err := s.store.Insert(ctx, tx, w); err != nil {
			return err
		}
		resp = toResponse(w)
		return nil
	})
	return resp, err
}

func (s *Service) List(ctx context.Context, p auth.Principal, bookID string, pg Page) (ListResult, error) {
	lib, err := s.store.BookLibrary(ctx, bookID)
	if err != nil {
		return ListResult{}, err
	}
	if !books.CanManage(p, lib) {
		return ListResult{}, ErrForbidden("cannot view withdrawals of this library")
	}
	if pg.Limit <= 0 || pg.Limit > 200 {
		pg.Limit = 50
	}
	if pg.Offset < 0 {
		pg.Offset = 0
	}

	rows, total, err := s.store.ListByBook(ctx, bookID, pg)
	if err != nil {
		return ListResult{}, err
	}
	items := make([]WithdrawalResponse, 0, len(rows))
	for _, w := range rows {
		items = append(items, toResponse(w))
	}
	next := pg.Offset + pg.Limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// ---- helpers ----

func toResponse(w Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:            w.ID,
		BookID:        w.BookID,
		Quantity:      w.Quantity,
		Reason:        nullToPtr(w.Reason),
		ProcessedByID: nullToPtr(w.ProcessedByID),
		WithdrawnAt:   w.WithdrawnAt.Time,
	}
}

func toNullString(s *string) (ns sql.NullString) {
	if s != nil && strings.TrimSpace(*s) != "" {
		ns.Valid, ns.String = true, *s
	}
	return
}

func nullToPtr(ns sql.NullString) *string {
	if ns.Valid {
		v := ns.String
		return &v
	}
	return nil
}
