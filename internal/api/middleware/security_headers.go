package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// cspAPI is a strict Content-Security-Policy. Every route returns JSON or a
// JSON attachment, so nothing should ever be loaded from a response.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets security-related HTTP response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Header("Content-Security-Policy", cspAPI)

		// HSTS - only with TLS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// Backup documents include third-party API keys.
		if isBackupRoute(c.Request.URL.Path) {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}

func isBackupRoute(path string) bool {
	return strings.HasPrefix(path, "/api/backup/")
}
