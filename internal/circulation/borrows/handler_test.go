package borrows

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRA-backend/internal/platform/auth"
)

func init() { gin.SetMode(gin.TestMode) }

// X-Test-User / X-Test-Role ヘッダで Principal を差し込む
func fakeAuth(c *gin.Context) {
	if id := c.GetHeader("X-Test-User"); id != "" {
		auth.WithPrincipal(c, auth.Principal{
			UserID:    id,
			Role:      auth.Role(c.GetHeader("X-Test-Role")),
			LibraryID: c.GetHeader("X-Test-Library"),
		})
	}
	c.Next()
}

func newTestRouter(repo *memRepo) *gin.Engine {
	svc, _ := newTestService(repo)
	r := gin.New()
	RegisterRoutes(r.Group("/api", fakeAuth), svc, nil)
	return r
}

func call(r http.Handler, method, path string, p *auth.Principal, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("X-Test-User", p.UserID)
		req.Header.Set("X-Test-Role", string(p.Role))
		req.Header.Set("X-Test-Library", p.LibraryID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) Code {
	t.Helper()
	var e errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e.Error.Code
}

func TestHandler_BorrowAndReturn(t *testing.T) {
	repo := newMemRepo()
	repo.addBook("B1", "L1", 1, 1)
	r := newTestRouter(repo)
	s1 := student("S1")

	w := call(r, http.MethodPost, "/api/borrow", &s1, map[string]string{"bookId": "B1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "B1", created.BookID)
	assert.Equal(t, StatusBorrowed, created.Status)
	assert.Equal(t, "/borrow/"+created.ID, w.Header().Get("Location"))

	w = call(r, http.MethodPut, "/api/borrow/"+created.ID+"/return", &s1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var returned BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &returned))
	assert.Equal(t, StatusReturned, returned.Status)
	assert.NotNil(t, returned.ReturnDate)

	w = call(r, http.MethodPut, "/api/borrow/"+created.ID+"/return", &s1, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, errCode(t, w))
}

func TestHandler_BorrowErrors(t *testing.T) {
	s1 := student("S1")
	tests := []struct {
		name     string
		p        *auth.Principal
		body     any
		wantCode int
		wantErr  Code
	}{
		{"unauthenticated", nil, map[string]string{"bookId": "B1"}, http.StatusUnauthorized, CodeUnauthenticated},
		{"missing bookId", &s1, map[string]string{}, http.StatusBadRequest, CodeInvalidArgument},
		{"owner forbidden", &owner, map[string]string{"bookId": "B1"}, http.StatusForbidden, CodeForbidden},
		{"unknown book", &s1, map[string]string{"bookId": "B9"}, http.StatusNotFound, CodeNotFound},
		{"no copies", &s1, map[string]string{"bookId": "B0"}, http.StatusConflict, CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.addBook("B1", "L1", 1, 1)
			repo.addBook("B0", "L1", 1, 0)
			r := newTestRouter(repo)

			w := call(r, http.MethodPost, "/api/borrow", tt.p, tt.body)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, errCode(t, w))
		})
	}
}

func TestHandler_ReturnForbiddenForOtherStudent(t *testing.T) {
	repo := newMemRepo()
	repo.addBook("B1", "L1", 1, 1)
	r := newTestRouter(repo)
	s1, s2 := student("S1"), student("S2")

	w := call(r, http.MethodPost, "/api/borrow", &s1, map[string]string{"bookId": "B1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(r, http.MethodPut, "/api/borrow/"+created.ID+"/return", &s2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPut, "/api/borrow/"+created.ID+"/return", &admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_ReturnUnknown(t *testing.T) {
	r := newTestRouter(newMemRepo())
	w := call(r, http.MethodPut, "/api/borrow/missing/return", &admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, errCode(t, w))
}

func TestHandler_Status(t *testing.T) {
	repo := newMemRepo()
	repo.addBook("B1", "L1", 3, 3)
	r := newTestRouter(repo)
	s1, s2 := student("S1"), student("S2")
	require.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/api/borrow", &s1, map[string]string{"bookId": "B1"}).Code)
	require.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/api/borrow", &s2, map[string]string{"bookId": "B1"}).Code)

	w := call(r, http.MethodGet, "/api/borrow/status?limit=1", &s1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "S1", res.Items[0].StudentID)

	w = call(r, http.MethodGet, "/api/borrow/status?limit=1", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, 1, res.NextOffset)
	assert.Equal(t, "S2", res.Items[0].StudentID)

	w = call(r, http.MethodGet, "/api/borrow/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_InternalErrorDoesNotLeak(t *testing.T) {
	repo := newMemRepo()
	repo.addBook("B1", "L1", 1, 1)
	repo.failOn, repo.failErr = "LockBook", assert.AnError
	r := newTestRouter(repo)
	s1 := student("S1")

	w := call(r, http.MethodPost, "/api/borrow", &s1, map[string]string{"bookId": "B1"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeInternal, errCode(t, w))
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
