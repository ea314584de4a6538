package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MacJediWizard/hearth/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// In production allowedOrigins must not be empty. Elsewhere an empty list
// allows all origins and logs a warning.
func CORS(allowedOrigins []string, env config.Environment, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if len(allowedOrigins) == 0 {
		if env == config.EnvProduction {
			return nil, errors.New("CORS_ORIGINS must be set in production; refusing to start with open CORS policy")
		}
		logger.Warn().Msg("CORS_ORIGINS is empty, all origins are allowed (not suitable for production)")
	}

	allowAll := len(allowedOrigins) == 0

	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := allowAll
		if !allowed && origin != "" {
			_, allowed = originSet[strings.ToLower(origin)]
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
		}

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}, nil
}
