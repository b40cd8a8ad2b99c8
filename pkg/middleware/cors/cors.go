package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/pkg/config"
)

// New returns a CORS middleware that honors the configured allowed origins.
func New(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := len(cfg.AllowedOrigins) == 0
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originSet[strings.TrimRight(origin, "/")]; allowAll || ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			}
		} else if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Vary", "Origin")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After, Content-Disposition")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
