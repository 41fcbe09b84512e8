package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

// Recovery turns a panic into a 500 envelope. The panic is logged with its
// stack and forwarded to Sentry, which is a no-op when no DSN was set.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				logger.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n])).
					Msg("panic recovered")

				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetTag("request_id", c.GetString(RequestIDKey))
				hub.Recover(r)

				utils.SendError(c, http.StatusInternalServerError, utils.CodeInternal, "internal server error")
			}
		}()
		c.Next()
	}
}

// ReportServerErrors sends 5xx responses that carry gin errors to Sentry.
func ReportServerErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 500 || len(c.Errors) == 0 {
			return
		}
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		hub.Scope().SetTag("request_id", c.GetString(RequestIDKey))
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	}
}
