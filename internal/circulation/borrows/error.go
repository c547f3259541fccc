package borrows

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"    // 二重貸出・返却済み
	CodeUnavailable     Code = "UNAVAILABLE" // 在庫なし
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError         { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrUnauthenticated(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func ErrForbidden(msg string) *APIError       { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrNotFound(msg string) *APIError        { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError        { return &APIError{Code: CodeConflict, Message: msg} }
func ErrUnavailable(msg string) *APIError     { return &APIError{Code: CodeUnavailable, Message: msg} }

// IsCode は err が指定コードの APIError かを判定する。
func IsCode(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict, CodeUnavailable:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// resultLabel はメトリクスの result ラベル値
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var api *APIError
	if errors.As(err, &api) {
		return strings.ToLower(string(api.Code))
	}
	return "error"
}
