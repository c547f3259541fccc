package withdrawals

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

	r.POST("/books/:bookId/withdrawals", manage, h.Create)
	r.GET("/books/:bookId/withdrawals", manage, h.List)
}

func (h *Handler) Create(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), p, c.Param("bookId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) List(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	pg := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	res, err := h.svc.List(c.Request.Context(), p, c.Param("bookId"), pg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

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

func writeError(c *gin.Context, err error) {
	var api *APIError
	if errors.As(err, &api) {
		c.JSON(ToHTTPStatus(err), errorBody(api.Code, api.Message))
		return
	}
	slog.ErrorContext(c.Request.Context(), "withdrawal request failed",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
}
