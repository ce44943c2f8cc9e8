package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/game"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		gs := mgr.GameState()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "speedfriending-api",
			"version":     version,
			"uptime":      time.Since(startTime).String(),
			"game":        gs.Status,
			"round":       gs.Round,
			"connections": mgr.Registry().Len(),
		})
	}
}
