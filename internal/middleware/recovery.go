package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
)

// GinRecovery converts panics into a 500 {"message": ...} response and
// reports them through the error handler.
func GinRecovery(errHandler *apperrors.Handler, message string, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered in http handler",
			slog.Any("panic", recovered),
			slog.String("stack", string(debug.Stack())),
		)
		if errHandler != nil {
			errHandler.Handle(c.Request.Context(), apperrors.NewInternalError("panic recovered", fmt.Errorf("%v", recovered)))
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": message})
	})
}
