package borrows

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes は認証済みグループに貸出台帳のルートを登録する。
// limit が nil でなければ POST /borrow にだけ適用する。
func RegisterRoutes(r gin.IRoutes, svc *Service, limit gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.GET("/borrow/status", h.List)
	if limit != nil {
		r.POST("/borrow", limit, h.Borrow)
	} else {
		r.POST("/borrow", h.Borrow)
	}
	r.PUT("/borrow/:borrowId/return", h.Return)
}

// ---------- handlers ----------

// Borrow godoc
// @Summary  書籍を借りる（STUDENT のみ）
// @Tags     borrows
// @Accept   json
// @Produce  json
// @Param    body body BorrowRequest true "bookId"
// @Success  201 {object} BorrowResponse
// @Failure  400,403,404,409 {object} errorDTO
// @Router   /borrow [post]
func (h *Handler) Borrow(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "authentication required"))
		return
	}
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Borrow(c.Request.Context(), p, req.BookID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/borrow/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

// Return godoc
// @Summary  返却する
// @Tags     borrows
// @Produce  json
// @Param    borrowId path string true "borrow id"
// @Success  200 {object} BorrowResponse
// @Failure  403,404,409 {object} errorDTO
// @Router   /borrow/{borrowId}/return [put]
func (h *Handler) Return(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "authentication required"))
		return
	}
	res, err := h.svc.Return(c.Request.Context(), p, c.Param("borrowId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List godoc
// @Summary  貸出一覧（ロールに応じて範囲が変わる）
// @Tags     borrows
// @Produce  json
// @Param    onlyOpen  query bool   false "未返却のみ"
// @Param    studentId query string false "学生で絞り込み"
// @Param    libraryId query string false "図書館で絞り込み（ADMIN）"
// @Param    limit     query int    false "default 50"
// @Param    offset    query int    false "default 0"
// @Success  200 {object} ListResult
// @Router   /borrow/status [get]
func (h *Handler) List(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "authentication required"))
		return
	}
	f := Filter{
		StudentID: c.Query("studentId"),
		LibraryID: c.Query("libraryId"),
	}
	if v := c.Query("onlyOpen"); v == "true" || v == "1" {
		f.OnlyOpen = true
	}
	pg := Page{
		Limit:  parseIntDefault(c.Query("limit"), defaultLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	res, err := h.svc.List(c.Request.Context(), p, f, pg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// writeError: 想定外のエラーはログに残し、中身は返さない
func writeError(c *gin.Context, err error) {
	var api *APIError
	if errors.As(err, &api) && api.Code != CodeInternal {
		c.JSON(ToHTTPStatus(err), errorBody(api.Code, api.Message))
		return
	}
	slog.ErrorContext(c.Request.Context(), "borrow ledger failure",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
}
