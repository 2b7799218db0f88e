package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/haramapp/internal/services"
)

// Scheduler runs the periodic lottery and maintenance jobs:
// the draw every Wednesday 20:00 Tehran time, incomplete-winner cancellation
// every Thursday 08:00, and expired-OTP cleanup every hour.
type Scheduler struct {
	cron    *cron.Cron
	lottery *services.LotteryService
	otp     *services.OTPService
	logger  *zap.Logger
}

// New constructs a Scheduler with all jobs registered.
func New(lottery *services.LotteryService, otp *services.OTPService, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		lottery: lottery,
		otp:     otp,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc("0 20 * * WED", s.runDraw); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("0 8 * * THU", s.cancelIncompleteWinners); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("@hourly", s.cleanupExpiredOTPs); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins job execution in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("lottery scheduler started",
		zap.String("draw", "Wednesday 20:00 Asia/Tehran"),
		zap.String("cancellation", "Thursday 08:00 Asia/Tehran"),
	)
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runDraw() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	winners, err := s.lottery.RunDraw(ctx)
	if err != nil {
		s.logger.Error("scheduled draw failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled draw finished", zap.Int("winners", len(winners)))
}

func (s *Scheduler) cancelIncompleteWinners() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cancelled, err := s.lottery.CancelIncompleteWinners(ctx)
	if err != nil {
		s.logger.Error("winner cancellation failed", zap.Error(err))
		return
	}
	s.logger.Info("cancelled incomplete winner tickets", zap.Int("count", cancelled))
}

func (s *Scheduler) cleanupExpiredOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.otp.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error("otp cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("deleted expired otp codes", zap.Int64("count", deleted))
	}
}
