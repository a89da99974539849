package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/shared/server/respond"
)

const (
	corsAllowMethods  = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders  = "Authorization, Content-Type, X-Request-Id"
	corsExposeHeaders = "Content-Disposition, Retry-After, X-Request-Id"
	corsMaxAgeSeconds = "600"
)

// CORS admits browser calls from the configured editor origins. An entry of
// "*" admits any origin. Preflights from other origins are refused with 403 so
// the editor surfaces a misconfigured deployment instead of a silent failure.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAny := false
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			allowAny = true
		default:
			origins[o] = true
		}
	}
	allowed := func(origin string) bool {
		return allowAny || origins[origin]
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions

		switch {
		case origin == "":
		case allowed(origin):
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			if preflight {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAgeSeconds)
			}
		case preflight:
			respond.Error(c, http.StatusForbidden, "origin_not_allowed", "origin is not allowed", gin.H{"origin": origin})
			return
		}

		if preflight {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
