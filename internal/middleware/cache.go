package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PublicCache marks GET responses as shareable for maxAge
// seconds. It overrides the no-store default of SecurityHeaders and is only
// meant for anonymous, non-personal data like the booking catalog.
func PublicCache(maxAge int) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(maxAge)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		c.Header("Cache-Control", value)
		c.Header("Vary", "Accept")
		c.Next()
	}
}
