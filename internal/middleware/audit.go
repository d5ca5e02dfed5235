package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

// ActionRecordViewed is logged for every successful staff read.
const ActionRecordViewed = "record.viewed"

type AuditMiddleware struct {
	auditor audit.Logger
}

func NewAuditMiddleware(auditor audit.Logger) *AuditMiddleware {
	return &AuditMiddleware{auditor: auditor}
}

// AccessLog records reads of clinical data. Writes are audited by the
// services themselves, so only successful GETs are logged here.
func (m *AuditMiddleware) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if m.auditor == nil || c.Request.Method != http.MethodGet {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		claims, ok := Claims(c)
		if !ok {
			return
		}

		var entityID uuid.UUID
		if id := c.Param("id"); id != "" {
			entityID, _ = uuid.Parse(id)
		}

		m.auditor.Log(c.Request.Context(),
			claims.UserID,
			claims.ClinicID,
			ActionRecordViewed,
			entityType(c.FullPath()),
			entityID,
			&audit.LogOptions{
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				Metadata: map[string]interface{}{
					"path":  c.FullPath(),
					"query": c.Request.URL.RawQuery,
				},
			},
		)
	}
}

// entityType picks the resource out of a route template such as
// /api/v1/clinics/:clinic_id/appointments.
func entityType(fullPath string) string {
	parts := strings.Split(strings.Trim(fullPath, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if p == "" || strings.HasPrefix(p, ":") || p == "api" || p == "v1" {
			continue
		}
		return strings.TrimSuffix(p, "s")
	}
	return "unknown"
}
