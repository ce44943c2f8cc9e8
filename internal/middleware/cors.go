package middleware

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/config"
)

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		MaxAge: 12 * time.Hour,
	}

	if cfg.Environment == "development" && cfg.FrontendURL == "" {
		corsConfig.AllowAllOrigins = true
	} else {
		origins := []string{}
		if cfg.FrontendURL != "" {
			origins = append(origins, cfg.FrontendURL)
		}
		if cfg.Environment == "development" {
			origins = append(origins, "http://localhost:5173", "http://127.0.0.1:5173")
		}
		if len(origins) == 0 {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = origins
			corsConfig.AllowCredentials = true
		}
	}
	log.Printf("[CORS] Environment: %s, allowed origins: %v (all=%v)", cfg.Environment, corsConfig.AllowOrigins, corsConfig.AllowAllOrigins)

	return cors.New(corsConfig)
}
