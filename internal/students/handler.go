package students

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	manage := auth.RequireRole(auth.RoleLibraryOwner, auth.RoleAdmin)

	r.POST("/students", manage, h.Create)
	r.GET("/students", manage, h.List)
	r.PATCH("/students/:studentId/fees", manage, h.UpdateFees)
}

// Create godoc
// @Summary  生徒登録（アカウント＋プロフィール）
// @Tags     students
// @Accept   json
// @Produce  json
// @Param    body body CreateStudentRequest true "student"
// @Success  201 {object} StudentResponse
// @Router   /students [post]
func (h *Handler) Create(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ErrInvalid("invalid json"))
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), p, req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) List(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	resp, err := h.svc.List(c.Request.Context(), p, Page{Limit: limit, Offset: offset})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateFees(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req UpdateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ErrInvalid("invalid json"))
		return
	}
	resp, err := h.svc.UpdateFees(c.Request.Context(), p, c.Param("studentId"), req)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeErr(c *gin.Context, err error) {
	var api *APIError
	if !errors.As(err, &api) {
		slog.ErrorContext(c.Request.Context(), "students request failed",
			slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		api = &APIError{Code: CodeInternal, Message: "internal error"}
	}
	c.JSON(ToHTTPStatus(api), gin.H{"error": api})
}
