package reminders

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ d *Dispatcher }

func RegisterRoutes(r gin.IRoutes, d *Dispatcher) {
	h := &Handler{d: d}
	r.POST("/reminders/send", auth.RequireRole(auth.RoleLibraryOwner, auth.RoleAdmin), h.Send)
}

// Send godoc
// @Summary  リマインダーを即時送信（オーナーは自館のみ）
// @Tags     reminders
// @Produce  json
// @Success  200 {object} Result
// @Router   /reminders/send [post]
func (h *Handler) Send(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	libraryID := ""
	if p.Role == auth.RoleLibraryOwner {
		if p.LibraryID == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": "no library assigned"}})
			return
		}
		libraryID = p.LibraryID
	}

	res, err := h.d.Run(c.Request.Context(), libraryID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "reminder run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": "internal error"}})
		return
	}
	c.JSON(http.StatusOK, res)
}
