package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/game"
)

type roundRequest struct {
	Round int `json:"round"`
}

// FormTeams builds the round's teams from mutual ratings.
func FormTeams(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roundRequest
		if !bindOptional(c, &req) {
			return
		}
		if req.Round == 0 {
			req.Round = mgr.GameState().Round
		}
		teams, err := mgr.FormTeams(c.Request.Context(), req.Round)
		if err != nil {
			respondError(c, err, "teams")
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": req.Round, "teams": teams})
	}
}

// GetTeamBattles lists the battles of a round.
func GetTeamBattles(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		round, ok := roundParam(c, mgr)
		if !ok {
			return
		}
		battles, err := mgr.ListBattles(c.Request.Context(), round)
		if err != nil {
			respondError(c, err, "battles")
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": round, "battles": battles})
	}
}

// RecordBattleWinner stores the winning team of a battle.
func RecordBattleWinner(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Round         int   `json:"round"`
			BattleID      int64 `json:"battleId"`
			WinningTeamID int64 `json:"winningTeamId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		battle, err := mgr.DeclareWinner(c.Request.Context(), req.Round, req.BattleID, req.WinningTeamID)
		if err != nil {
			respondError(c, err, "battle")
			return
		}
		c.JSON(http.StatusOK, gin.H{"battle": battle})
	}
}
