package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds the response headers set on every API response.
type SecurityConfig struct {
	HSTSMaxAge     int
	FrameOptions   string
	ReferrerPolicy string
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge:     31536000,
		FrameOptions:   "DENY",
		ReferrerPolicy: "no-referrer",
	}
}

// SecurityHeaders sets the headers for a JSON-only API. Responses may
// contain patient data, so intermediaries must not store them.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	hsts := "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"

	return func(c *gin.Context) {
		if config.HSTSMaxAge > 0 {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Header("X-Frame-Options", config.FrameOptions)
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", config.ReferrerPolicy)
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
