package routes

import (
	"github.com/jondahl/pokerbot/config"
	"github.com/jondahl/pokerbot/controllers"
	"github.com/jondahl/pokerbot/middleware"
	"github.com/jondahl/pokerbot/services/calendar"
	"github.com/jondahl/pokerbot/services/classifier"
	"github.com/jondahl/pokerbot/services/invitations"
	"github.com/jondahl/pokerbot/services/notifications"
	"github.com/jondahl/pokerbot/services/redis"
	"github.com/jondahl/pokerbot/services/sms"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jondahl/pokerbot/config/swagger"
)

// SetupRoutes wires every HTTP route to its controller. All collaborator
// clients are built here once and shared through the cascade engine.
func SetupRoutes(router *gin.Engine, db *gorm.DB, redisClient *redis.RedisClient, cfg *config.Config, log zerolog.Logger) {
	twilio := sms.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, log)
	claude := classifier.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, log)
	googleCal := calendar.NewGoogleClient(cfg.GoogleCalendarID, cfg.GoogleCalendarToken, log)
	flow := invitations.NewFlow(db, twilio, googleCal, log)
	notifier := notifications.NewNotifier(twilio, cfg.AdminPhoneNumbers, log)

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/")

	api.GET("/ping", controllers.Ping)

	api.POST("/login", controllers.Login(cfg))

	// Twilio posts here; authenticated by signature, not session.
	api.POST("/sms", controllers.InboundSMS(db, redisClient, twilio, claude, flow, notifier, cfg, log))

	// External scheduler; authenticated by shared secret. GET kept for
	// manual runs.
	api.POST("/cron/deadline-check", controllers.DeadlineCheck(flow, cfg.CronSecret))
	api.GET("/cron/deadline-check", controllers.DeadlineCheck(flow, cfg.CronSecret))

	authentication := api.Group("/auth")
	authentication.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		authentication.DELETE("/logout", controllers.Logout)

		authentication.GET("/dashboard", controllers.DashboardStats(db))

		authentication.GET("/players", controllers.ListPlayers(db))
		authentication.GET("/players/opted-out", controllers.ListOptedOutPlayers(db))
		authentication.POST("/players", controllers.CreatePlayer(db))
		authentication.PATCH("/players/:id", controllers.UpdatePlayer(db))
		authentication.DELETE("/players/:id", controllers.DeletePlayer(db))
		authentication.POST("/players/:id/reactivate", controllers.ReactivatePlayer(db))

		authentication.GET("/games", controllers.ListGames(db))
		authentication.POST("/games", controllers.CreateGame(db))
		authentication.GET("/games/:id", controllers.GetGame(db))
		authentication.PATCH("/games/:id/status", controllers.UpdateGameStatus(db))
		authentication.POST("/games/:id/invitations", controllers.AddPlayersToGame(db))
		authentication.POST("/games/:id/send", controllers.SendInvitations(flow))

		authentication.GET("/escalations", controllers.ListEscalations(db))
		authentication.GET("/escalations/:id", controllers.GetEscalation(db))
		authentication.POST("/escalations/:id/resolve", controllers.ResolveEscalation(db, twilio))
		authentication.POST("/escalations/:id/confirm", controllers.ConfirmPlayerQuickAction(db, flow, twilio))
		authentication.POST("/escalations/:id/decline", controllers.DeclinePlayerQuickAction(db, flow, twilio))
	}
}
