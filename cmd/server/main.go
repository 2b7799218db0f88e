package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/haramapp/internal/config"
	"github.com/example/haramapp/internal/database"
	"github.com/example/haramapp/internal/routes"
	"github.com/example/haramapp/internal/scheduler"
	"github.com/example/haramapp/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	if redisClient == nil {
		zapLogger.Warn("no REDIS_URL configured, rate limiting falls back to the database")
	}

	sms := services.NewKavenegarService(cfg.KavenegarAPIKey, cfg.KavenegarOTPTemplate, cfg.KavenegarAPIURL, zapLogger)
	otp := services.NewOTPService(db, redisClient, cfg.OTPCodeLength, cfg.OTPExpiry, cfg.OTPRateLimitCount, cfg.OTPRateLimitWindow, zapLogger)
	lottery := services.NewLotteryService(db, sms, cfg.LotteryWinnersCount, cfg.LotteryWinnerSMSTemplate, zapLogger)

	app := fiber.New(fiber.Config{
		AppName: "Haramapp Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, redisClient, cfg, sms, otp, lottery, zapLogger)

	if cfg.EnableLotteryScheduler {
		sched, err := scheduler.New(lottery, otp, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to initialize scheduler", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	zapLogger.Info("starting server", zap.String("port", cfg.AppPort))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zapLogger.Fatal("fiber.Listen error", zap.Error(err))
	}
}
