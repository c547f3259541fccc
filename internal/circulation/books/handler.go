package books

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 参照は認証済みなら誰でも、編集は LIBRARY_OWNER / ADMIN。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	manage := auth.RequireRole(auth.RoleLibraryOwner, auth.RoleAdmin)

	r.GET("/books", h.List)
	r.GET("/books/:bookId", h.Get)
	r.POST("/books", manage, h.Create)
	r.PUT("/books/:bookId", manage, h.Update)
	r.DELETE("/books/:bookId", manage, h.Delete)
}

func (h *Handler) Create(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), p, req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Header("Location", "/books/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	q := SearchQuery{
		Q:         c.Query("q"),
		LibraryID: c.Query("libraryId"),
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	res, err := h.svc.List(c.Request.Context(), q, p)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Update(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), p, c.Param("bookId"), req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	if err := h.svc.Delete(c.Request.Context(), p, c.Param("bookId")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== helpers =====

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

type errDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErr(code Code, msg string) errDTO {
	var e errDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func writeErr(c *gin.Context, err error) {
	var api *APIError
	if errors.As(err, &api) {
		c.JSON(toHTTPStatus(err), apiErr(api.Code, api.Message))
		return
	}
	slog.ErrorContext(c.Request.Context(), "books request failed",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, apiErr(CodeInternal, "internal error"))
}
