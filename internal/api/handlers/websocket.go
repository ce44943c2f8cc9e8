package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/ws"
)

// HandleWebSocket upgrades to the real-time channel
func HandleWebSocket(hub *ws.Hub) gin.HandlerFunc {
	return hub.ServeWS
}
