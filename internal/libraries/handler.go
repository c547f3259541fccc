package libraries

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// 参照は認証済みなら誰でも（範囲は所属館に限定）、作成・更新は ADMIN のみ。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	admin := auth.RequireRole(auth.RoleAdmin)

	r.GET("/libraries", h.List)
	r.GET("/libraries/:libraryId", h.Get)
	r.POST("/libraries", admin, h.Create)
	r.PUT("/libraries/:libraryId", admin, h.Update)
}

func (h *Handler) List(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	resp, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

func (h *Handler) Get(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	resp, err := h.svc.Get(c.Request.Context(), p, c.Param("libraryId"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ErrInvalid("invalid json"))
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req.Name, req.Address)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Header("Location", "/libraries/"+resp.ID)
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ErrInvalid("invalid json"))
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), c.Param("libraryId"), req.Name, req.Address)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeErr(c *gin.Context, err error) {
	var api *APIError
	if !errors.As(err, &api) {
		slog.ErrorContext(c.Request.Context(), "libraries request failed", slog.String("error", err.Error()))
		api = &APIError{Code: CodeInternal, Message: "internal error"}
	}
	c.JSON(toHTTPStatus(api), gin.H{"error": api})
}
