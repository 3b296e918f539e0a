package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/legalrag/internal/pkg/requestid"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestid.Header)
		if id == "" || len(id) > 64 {
			id = requestid.New()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestid.Header, id)
		c.Request = c.Request.WithContext(requestid.With(c.Request.Context(), id))
		c.Next()
	}
}
