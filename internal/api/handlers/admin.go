package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/admin"
	"github.com/speedfriending/backend/internal/config"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/middleware"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/store"
)

// AdminLogin exchanges a username and password for a bearer token
func AdminLogin(st store.AdminStore, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		username := strings.TrimSpace(req.Username)
		ctx := c.Request.Context()

		acct, err := admin.ValidateAdminCredentials(ctx, st, username, req.Password)
		if err != nil {
			admin.LogAdminAction(ctx, st, username, c.ClientIP(), c.FullPath(), "login", nil, false)
			if errors.Is(err, admin.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			log.Printf("[ADMIN] Login failed for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		token, exp, err := admin.IssueToken(cfg.JWTSecret, acct.Username, time.Duration(cfg.AdminTokenTTLMinutes)*time.Minute)
		if err != nil {
			log.Printf("[ADMIN] Failed to issue token for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		admin.LogAdminAction(ctx, st, acct.Username, c.ClientIP(), c.FullPath(), "login", nil, true)
		c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp})
	}
}

// stateChange wraps a run-state transition with auditing.
func stateChange(st store.AdminStore, action string, fn func(c *gin.Context) (models.GameState, map[string]interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		gs, details, err := fn(c)
		if c.IsAborted() {
			return
		}
		audit(c, st, action, details, err == nil)
		if err != nil {
			respondError(c, err, "game state")
			return
		}
		log.Printf("[ADMIN] %s by %s: status=%s round=%d", action, c.GetString(middleware.AdminUserKey), gs.Status, gs.Round)
		c.JSON(http.StatusOK, gin.H{"game": gs})
	}
}

// StartGame sets the game running, optionally moving to a given round
func StartGame(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return stateChange(st, "start_game", func(c *gin.Context) (models.GameState, map[string]interface{}, error) {
		var req roundRequest
		if !bindOptional(c, &req) {
			c.Abort()
			return models.GameState{}, nil, nil
		}
		gs, err := mgr.StartGame(c.Request.Context(), req.Round)
		return gs, map[string]interface{}{"round": req.Round}, err
	})
}

// StopGame pauses matching
func StopGame(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return stateChange(st, "stop_game", func(c *gin.Context) (models.GameState, map[string]interface{}, error) {
		gs, err := mgr.StopGame(c.Request.Context())
		return gs, nil, err
	})
}

// NextRound advances the round and releases every player
func NextRound(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return stateChange(st, "next_round", func(c *gin.Context) (models.GameState, map[string]interface{}, error) {
		gs, err := mgr.NextRound(c.Request.Context())
		return gs, map[string]interface{}{"round": gs.Round}, err
	})
}

// ResetRound returns the game to round 1
func ResetRound(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return stateChange(st, "reset_round", func(c *gin.Context) (models.GameState, map[string]interface{}, error) {
		gs, err := mgr.ResetRound(c.Request.Context())
		return gs, nil, err
	})
}

// GetGameStatus reports the run state and live connection count
func GetGameStatus(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"game":        mgr.GameState(),
			"connections": mgr.Registry().Len(),
		})
	}
}

// ListPlayers returns every registered participant
func ListPlayers(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		players, err := mgr.ListPlayers(c.Request.Context())
		if err != nil {
			respondError(c, err, "players")
			return
		}
		c.JSON(http.StatusOK, gin.H{"players": players, "total": len(players)})
	}
}

// DeletePlayer removes a participant
func DeletePlayer(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}
		err := mgr.DeletePlayer(c.Request.Context(), id)
		audit(c, st, "delete_player", map[string]interface{}{"playerId": id}, err == nil)
		if err != nil {
			respondError(c, err, "player")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// ListMatches returns the pairings of a round
func ListMatches(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		round, ok := roundParam(c, mgr)
		if !ok {
			return
		}
		matches, err := mgr.ListMatches(c.Request.Context(), round)
		if err != nil {
			respondError(c, err, "matches")
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": round, "matches": matches})
	}
}

// ScheduleBattles pairs the round's teams and announces the battles
func ScheduleBattles(mgr *game.Manager, st store.AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roundRequest
		if !bindOptional(c, &req) {
			return
		}
		if req.Round == 0 {
			req.Round = mgr.GameState().Round
		}
		sched, err := mgr.ScheduleBattles(c.Request.Context(), req.Round)
		audit(c, st, "schedule_battles", map[string]interface{}{"round": req.Round}, err == nil)
		if err != nil {
			respondError(c, err, "battles")
			return
		}
		c.JSON(http.StatusOK, sched)
	}
}
