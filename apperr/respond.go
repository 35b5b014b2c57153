package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Respond writes err as a JSON body and aborts the request. Errors that are
// not *Error are reported as a bare 500 so internals never leak.
func Respond(c *gin.Context, err error) {
	var e *Error
	if errors.As(err, &e) {
		c.AbortWithStatusJSON(e.StatusCode, gin.H{"error": e.Message, "kind": e.Kind})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
}
