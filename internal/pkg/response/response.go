package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// apiError exposes Code so proxyutil fills the envelope code from it.
type apiError struct {
	code uint32
	msg  string
}

func (e apiError) Error() string {
	return e.msg
}

func (e apiError) Code() uint32 {
	return e.code
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Items answers a listing as {"items": [...]}; a nil slice becomes [].
func Items[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	Success(c, gin.H{"items": items})
}

// Error always answers HTTP 200; the failure is carried by code and message.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, apiError{code: uint32(code), msg: message})
}
