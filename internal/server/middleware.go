package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/pkg/telemetry/correlation"
)

// CORS decorates the engine with the configured origin policy. Preflight
// requests pass through so Preflight can answer them.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", correlation.HeaderName},
		ExposedHeaders:     []string{"X-Request-ID"},
		MaxAge:             300,
		OptionsPassthrough: true,
	})
}

// Preflight answers every OPTIONS request with 204, matched route or not.
func Preflight() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
