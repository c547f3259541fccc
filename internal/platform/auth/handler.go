package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc *Service }

// RegisterRoutes: login は認証不要、アカウント管理は ADMIN のみ。
func RegisterRoutes(r gin.IRouter, svc *Service, requireAuth gin.HandlerFunc) {
	h := &AuthHandler{svc: svc}
	r.POST("/auth/login", h.Login)

	admin := r.Group("/auth", requireAuth, RequireRole(RoleAdmin))
	admin.POST("/register", h.Register)
	admin.DELETE("/accounts/:id", h.DeleteAccount)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid id or password")
			return
		}
		slog.ErrorContext(c.Request.Context(), "login failed", slog.String("error", err.Error()))
		abort(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	c.JSON(http.StatusOK, res)
}

type RegisterRequest struct {
	ID        string `json:"id" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Role      Role   `json:"role" binding:"required"`
	LibraryID string `json:"libraryId"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
		return
	}

	err := h.svc.Register(c.Request.Context(), req.ID, req.Password, req.Role, req.LibraryID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": req.ID, "role": req.Role})
	case errors.Is(err, ErrAlreadyExists):
		abort(c, http.StatusConflict, "CONFLICT", "id already exists")
	case errors.Is(err, ErrInvalidAccount):
		abort(c, http.StatusBadRequest, "INVALID_ARGUMENT", "role must be LIBRARY_OWNER (with libraryId) or ADMIN, password at least 8 characters")
	default:
		slog.ErrorContext(c.Request.Context(), "register failed", slog.String("error", err.Error()))
		abort(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			abort(c, http.StatusNotFound, "NOT_FOUND", "account not found")
			return
		}
		if errors.Is(err, ErrReferenced) {
			abort(c, http.StatusConflict, "CONFLICT", "account has borrow history")
			return
		}
		slog.ErrorContext(c.Request.Context(), "delete account failed", slog.String("error", err.Error()))
		abort(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	c.Status(http.StatusNoContent)
}
