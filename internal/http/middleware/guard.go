package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/outfitmatch-backend/internal/http/response"
	"github.com/yungbote/outfitmatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// DefaultMaxBodyBytes fits a base64-encoded phone photo.
const DefaultMaxBodyBytes int64 = 15 << 20

// Recovery turns a panic into a 500 JSON envelope.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if log != nil {
				fields := append([]interface{}{"panic", fmt.Sprint(rec), "stack", string(debug.Stack())}, ctxutil.LogFields(c.Request.Context())...)
				log.Error("Handler panic", fields...)
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.RespondError(c, http.StatusInternalServerError, "internal_error", fmt.Errorf("internal server error"))
		}()
		c.Next()
	}
}

// BodyLimit caps request bodies; reads past the limit fail and handlers
// report them as 413.
func BodyLimit(max int64) gin.HandlerFunc {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Errorf("request body exceeds %d bytes", max))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
