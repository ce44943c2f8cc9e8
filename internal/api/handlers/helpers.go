package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/admin"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/middleware"
	"github.com/speedfriending/backend/internal/store"
)

// respondError maps engine errors to HTTP statuses. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, game.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	default:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process " + what})
	}
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// roundParam reads :round; 0 means the current round.
func roundParam(c *gin.Context, mgr *game.Manager) (int, bool) {
	raw := c.Param("round")
	if raw == "" || raw == "current" {
		return mgr.GameState().Round, true
	}
	round, err := strconv.Atoi(raw)
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round"})
		return 0, false
	}
	return round, true
}

// bindOptional decodes a JSON body that may be empty.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}

func audit(c *gin.Context, st store.AdminStore, action string, details map[string]interface{}, success bool) {
	admin.LogAdminAction(c.Request.Context(), st, c.GetString(middleware.AdminUserKey), c.ClientIP(), c.FullPath(), action, details, success)
}
