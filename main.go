package main

import (
	"os"
	"time"

	"github.com/jondahl/pokerbot/config"
	"github.com/jondahl/pokerbot/middleware"
	"github.com/jondahl/pokerbot/routes"
	"github.com/jondahl/pokerbot/services/redis"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// @title Pokerbot API
// @version 1.0
// @description SMS invitation bot for a private poker game: cascade engine, Twilio webhook and admin portal API
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log zerolog.Logger
	if cfg.Prod {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	log.Info().Msg("setting up server")

	gormDB, err := config.ConnectGORM()
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to PostgreSQL")
	}
	log.Info().Msg("GORM connected")

	// Only migrate in development or during deployment
	if cfg.MigratePostgres {
		log.Info().Msg("migrating PostgreSQL database")
		if err := config.MigrateDatabase(gormDB); err != nil {
			log.Warn().Err(err).Msg("database migration failed")
		} else {
			log.Info().Msg("database migrated successfully")
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading GORM PostgreSQL instance")
	}
	defer sqlDB.Close()

	redisClient, err := config.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to Redis")
	}
	log.Info().Msg("connection to Redis successful")
	defer redis.CloseRedis(redisClient)

	r := gin.Default()

	middleware.SetUpMiddleware(r, cfg.SessionKey)

	routes.SetupRoutes(r, gormDB, redisClient, cfg, log)

	log.Info().Str("port", cfg.Port).Msg("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("error starting server")
	}
}
