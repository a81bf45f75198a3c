package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContentSecurityPolicy -> CSP untuk API JSON; hanya frontend (origin CORS) yang boleh connect
func ContentSecurityPolicy(origin string) string {
	connect := []string{"'self'"}
	if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" && origin != "*" {
		connect = append(connect, origin)
	}
	return "default-src 'none'; frame-ancestors 'none'; connect-src " + strings.Join(connect, " ")
}

// SecurityHeaders memasang header keamanan global. origin sama dengan CORS_ORIGIN.
func SecurityHeaders(origin string) gin.HandlerFunc {
	csp := ContentSecurityPolicy(origin)
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
