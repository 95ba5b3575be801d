package middleware

import (
	"itsm-knowledge-base/helper"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID honours an incoming X-Correlation-ID or generates one, and
// echoes it on the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(helper.CorrelationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}
