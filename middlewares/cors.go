package middlewares

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ExplicitOrigins returns the configured origins, or nil when none are named
// or a "*" wildcard is present.
func ExplicitOrigins(origins []string) []string {
	for _, o := range origins {
		if o == "*" {
			return nil
		}
	}
	if len(origins) == 0 {
		return nil
	}
	return origins
}

// CORS lets the named web client origins send the auth cookie. Without named
// origins any site may read public responses but never with credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if allowed := ExplicitOrigins(origins); allowed != nil {
		cfg.AllowOrigins = allowed
		cfg.AllowCredentials = true
	} else {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
