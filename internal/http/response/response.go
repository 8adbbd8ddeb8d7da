package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/outfitmatch-backend/internal/platform/apierr"
)

// ErrorEnvelope is the only error body the API emits.
type ErrorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: msg, Code: code})
}

// RespondAPIError maps err to its carried status. Internal errors are not
// echoed to the client.
func RespondAPIError(c *gin.Context, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.Internal(err)
	}
	status := apierr.StatusOf(ae)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		RespondError(c, status, ae.Code, errors.New("internal server error"))
		return
	}
	RespondError(c, status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
