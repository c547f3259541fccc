package students

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

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
	Code    Code   `json:"code"`
	Message string `json:"message"`
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

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// ---- Service ----

type Service struct {
	db    *sql.DB
	store Store
	clock Clock
	hash  func(string) (string, error)
}

func NewService(conn *sql.DB) *Service {
	return &Service{db: conn, clock: realClock{}, hash: auth.HashPassword}
}

func canManage(p auth.Principal, libraryID string) bool {
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleLibraryOwner:
		return p.LibraryID != "" && p.LibraryID == libraryID
	}
	return false
}

func normalizePhone(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return "", false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return "", false
		}
	}
	return s, true
}

// Create は STUDENT アカウントとプロフィールを1つの Tx で作る。
func (s *Service) Create(ctx context.Context, p auth.Principal, req CreateStudentRequest) (*StudentResponse, error) {
	id := strings.TrimSpace(req.ID)
	name := strings.TrimSpace(req.Name)
	if id == "" || name == "" {
		return nil, ErrInvalid("id and name are required")
	}
	if len(req.Password) < 8 {
		return nil, ErrInvalid("password must be at least 8 characters")
	}
	phone, ok := normalizePhone(req.Phone)
	if !ok {
		return nil, ErrInvalid("invalid phone")
	}

	libraryID := req.LibraryID
	if p.Role == auth.RoleLibraryOwner {
		libraryID = p.LibraryID
	}
	if libraryID == "" {
		return nil, ErrInvalid("libraryId is required")
	}
	if !canManage(p, libraryID) {
		return nil, ErrForbidden("not allowed to register students for this library")
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	st := &Student{ID: id, Name: name, Phone: phone, LibraryID: libraryID, CreatedAt: s.clock.Now()}
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		err := auth.NewStore(tx).Create(ctx, &auth.Account{
			ID:           id,
			PasswordHash: hash,
			Role:         auth.RoleStudent,
			LibraryID:    libraryID,
		})
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			return ErrConflict("account id already exists")
		case errors.Is(err, auth.ErrInvalidAccount):
			return ErrInvalid("unknown libraryId")
		case err != nil:
			return err
		}
		return s.store.Insert(ctx, tx, st)
	})
	if err != nil {
		return nil, err
	}
	resp := toResponse(st)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, p auth.Principal, pg Page) (*ListResult, error) {
	var libraryID string
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleLibraryOwner:
		if p.LibraryID == "" {
			return &ListResult{Items: []StudentResponse{}}, nil
		}
		libraryID = p.LibraryID
	default:
		return nil, ErrForbidden("not allowed to list students")
	}
	if pg.Limit <= 0 || pg.Limit > 200 {
		pg.Limit = 50
	}
	if pg.Offset < 0 {
		pg.Offset = 0
	}

	rows, total, err := s.store.List(ctx, s.db, libraryID, pg)
	if err != nil {
		return nil, err
	}
	items := make([]StudentResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}
	next := 0
	if int64(pg.Offset+len(items)) < total {
		next = pg.Offset + len(items)
	}
	return &ListResult{Items: items, Total: total, NextOffset: next}, nil
}

func (s *Service) UpdateFees(ctx context.Context, p auth.Principal, id string, req UpdateFeesRequest) (*StudentResponse, error) {
	if req.FeesDue == nil {
		return nil, ErrInvalid("feesDue is required")
	}
	var on *string
	if *req.FeesDue {
		if req.FeeDueOn == nil {
			return nil, ErrInvalid("feeDueOn is required when feesDue is true")
		}
		d, err := time.Parse(dateLayout, *req.FeeDueOn)
		if err != nil {
			return nil, ErrInvalid("feeDueOn must be YYYY-MM-DD")
		}
		v := d.Format(dateLayout)
		on = &v
	}

	var out *Student
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st, err := s.store.Get(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("student not found")
		}
		if err != nil {
			return err
		}
		if !canManage(p, st.LibraryID) {
			return ErrForbidden("not allowed to update this student")
		}
		if err := s.store.UpdateFees(ctx, tx, id, *req.FeesDue, on); err != nil {
			return err
		}
		st.FeesDue = *req.FeesDue
		st.FeeDueOn = nil
		if on != nil {
			t, _ := time.Parse(dateLayout, *on)
			st.FeeDueOn = &t
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toResponse(out)
	return &resp, nil
}
