package libraries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	ulid "github.com/oklog/ulid/v2"

	"LIBRA-backend/internal/platform/auth"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
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

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

type Service struct {
	store *Store
	newID func() string
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db), newID: func() string { return ulid.Make().String() }}
}

// ADMIN 以外は自分の所属館だけ見える
func visible(p auth.Principal, libraryID string) bool {
	return p.Role == auth.RoleAdmin || (p.LibraryID != "" && p.LibraryID == libraryID)
}

func (s *Service) List(ctx context.Context, p auth.Principal) ([]Library, error) {
	if p.Role == auth.RoleAdmin {
		return s.store.List(ctx, "")
	}
	if p.LibraryID == "" {
		return []Library{}, nil
	}
	return s.store.List(ctx, p.LibraryID)
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*Library, error) {
	if !visible(p, id) {
		return nil, ErrForbidden("not allowed to view this library")
	}
	l, err := s.store.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("library not found")
	}
	return l, err
}

func (s *Service) Create(ctx context.Context, name string, address *string) (*Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	id := s.newID()
	if err := s.store.Create(ctx, id, name, address); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id, name string, address *string) (*Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound("library not found")
		}
		return nil, err
	}
	if _, err := s.store.Update(ctx, id, name, address); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}
