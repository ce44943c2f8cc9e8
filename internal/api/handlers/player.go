package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/models"
)

// RegisterPlayer creates a participant in the current round.
func RegisterPlayer(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string      `json:"name"`
			Role models.Role `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := mgr.RegisterPlayer(c.Request.Context(), req.Name, req.Role)
		if err != nil {
			respondError(c, err, "registration")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"playerId": p.ID, "player": p})
	}
}

// GetPlayer returns one participant.
func GetPlayer(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}
		p, err := mgr.GetPlayer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "player")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// SubmitRating records a rating outside the websocket, e.g. from a form that
// is submitted after the connection dropped.
func SubmitRating(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PairingID      string `json:"pairingId"`
			PlayerID       int64  `json:"playerId"`
			RatedPlayerID  int64  `json:"ratedPlayerId"`
			Enjoyment      int    `json:"enjoyment"`
			Depth          int    `json:"depth"`
			WouldChatAgain bool   `json:"wouldChatAgain"`
			Round          int    `json:"round"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := mgr.SubmitRating(c.Request.Context(), game.RatingInput{
			PairingID:      req.PairingID,
			PlayerID:       req.PlayerID,
			RatedPlayerID:  req.RatedPlayerID,
			Enjoyment:      req.Enjoyment,
			Depth:          req.Depth,
			WouldChatAgain: req.WouldChatAgain,
			Round:          req.Round,
		})
		if err != nil {
			respondError(c, err, "rating")
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"rating":        res.Rating,
			"statusUpdated": res.StatusUpdated,
			"matchRated":    res.MatchRated,
		})
	}
}
