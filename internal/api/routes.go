package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/api/handlers"
	"github.com/speedfriending/backend/internal/config"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/middleware"
	"github.com/speedfriending/backend/internal/store"
	"github.com/speedfriending/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, mgr *game.Manager, hub *ws.Hub, st store.AdminStore, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Next()
		})
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(mgr))

		v1.POST("/register", handlers.RegisterPlayer(mgr))
		v1.GET("/player/:id", handlers.GetPlayer(mgr))
		v1.POST("/rate", handlers.SubmitRating(mgr))

		v1.POST("/form-teams", handlers.FormTeams(mgr))
		v1.GET("/team-battles/:round", handlers.GetTeamBattles(mgr))
		v1.POST("/record-battle-winner", handlers.RecordBattleWinner(mgr))

		v1.GET("/ws", handlers.HandleWebSocket(hub))

		v1.POST("/admin/login", handlers.AdminLogin(st, cfg))

		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.AdminAuth(cfg))
		{
			adminGroup.POST("/start-game", handlers.StartGame(mgr, st))
			adminGroup.POST("/stop-game", handlers.StopGame(mgr, st))
			adminGroup.POST("/next-round", handlers.NextRound(mgr, st))
			adminGroup.POST("/reset-round", handlers.ResetRound(mgr, st))
			adminGroup.GET("/game-status", handlers.GetGameStatus(mgr))
			adminGroup.GET("/players", handlers.ListPlayers(mgr))
			adminGroup.DELETE("/players/:id", handlers.DeletePlayer(mgr, st))
			adminGroup.GET("/matches/:round", handlers.ListMatches(mgr))
			adminGroup.POST("/schedule-battles", handlers.ScheduleBattles(mgr, st))
			adminGroup.GET("/audit", handlers.GetAdminAuditLogs(st))
		}
	}

	if !cfg.AdminAuthRequired {
		log.Println("[ADMIN] Admin routes are open; set ADMIN_AUTH_REQUIRED=true to require a bearer token")
	}
}
