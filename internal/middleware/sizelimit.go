package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// DefaultMaxBodySize fits the largest consultation request with room to spare.
const DefaultMaxBodySize = 64 << 10

// SizeLimit rejects bodies larger than maxBytes. Declared lengths are
// checked up front; chunked bodies are cut off while reading.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Status:  httputil.StatusError,
				Message: "request body exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
