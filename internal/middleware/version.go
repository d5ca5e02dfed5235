package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

const (
	HeaderAcceptVersion = "Accept-Version"
	HeaderAPIVersion    = "X-API-Version"
	ContextAPIVersion   = "api_version"
)

// VersionDeprecation holds deprecation info
type VersionDeprecation struct {
	Date       string
	SunsetDate string
	Info       string
}

// VersionConfig represents version middleware configuration
type VersionConfig struct {
	DefaultVersion string
	// Supported maps a "major.minor" string to its deprecation notice, if any.
	Supported map[string]*VersionDeprecation
}

func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		DefaultVersion: "1.0",
		Supported:      map[string]*VersionDeprecation{"1.0": nil},
	}
}

var versionRegex = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Version negotiates the API version from Accept-Version and echoes the
// served version in X-API-Version.
func Version(config VersionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.GetHeader(HeaderAcceptVersion)
		if requested == "" {
			requested = config.DefaultVersion
		}

		if !versionRegex.MatchString(requested) {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid Accept-Version, use major.minor", nil))
			return
		}

		deprecation, ok := config.Supported[requested]
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, httputil.Response{
				Status:  httputil.StatusError,
				Message: fmt.Sprintf("API version %s not supported", requested),
			})
			return
		}

		c.Set(ContextAPIVersion, requested)
		c.Header(HeaderAPIVersion, requested)
		if deprecation != nil {
			c.Header("Deprecation", deprecation.Date)
			if deprecation.SunsetDate != "" {
				c.Header("Sunset", deprecation.SunsetDate)
			}
			if deprecation.Info != "" {
				c.Header("Link", fmt.Sprintf(`<%s>; rel="deprecation"; type="text/html"`, deprecation.Info))
			}
		}

		c.Next()
	}
}
