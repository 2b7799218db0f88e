package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/haramapp/internal/config"
	"github.com/example/haramapp/internal/handlers"
	"github.com/example/haramapp/internal/middleware"
	"github.com/example/haramapp/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, sms services.SMSSender, otp *services.OTPService, lottery *services.LotteryService, logger *zap.Logger) {
	authHandler := handlers.NewAuthHandler(db, cfg, otp, sms, logger)
	profileHandler := handlers.NewProfileHandler(db)
	lotteryHandler := handlers.NewLotteryHandler(lottery)
	adminHandler := handlers.NewAdminHandler(lottery)

	// Per-IP throttle in front of the per-phone limit inside the OTP service.
	otpLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Requests: cfg.OTPRateLimitCount,
		Window:   cfg.OTPRateLimitWindow,
	}, redisClient, logger)

	api := app.Group("/api")

	accounts := api.Group("/accounts")
	accounts.Post("/request-otp", otpLimiter.Middleware(), authHandler.RequestOTP)
	accounts.Post("/verify-otp", authHandler.VerifyOTP)
	accounts.Post("/refresh-token", authHandler.RefreshToken)

	protected := accounts.Group("", middleware.AuthMiddleware(cfg))
	protected.Get("/profile", profileHandler.GetProfile)
	protected.Patch("/profile", profileHandler.UpdateProfile)

	lotteryGroup := api.Group("/lottery", middleware.AuthMiddleware(cfg))
	lotteryGroup.Post("/participate", lotteryHandler.Participate)
	lotteryGroup.Get("/complete-winner-info", lotteryHandler.GetWinnerInfo)
	lotteryGroup.Post("/complete-winner-info", lotteryHandler.CompleteWinnerInfo)
	lotteryGroup.Get("/my-tickets", lotteryHandler.MyTickets)
	lotteryGroup.Get("/current-week-winners", lotteryHandler.CurrentWeekWinners)

	admin := lotteryGroup.Group("/admin", middleware.StaffMiddleware(db))
	admin.Post("/run-lottery", adminHandler.RunLottery)
}
