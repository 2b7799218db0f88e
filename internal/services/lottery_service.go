package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/haramapp/internal/models"
)

var (
	// ErrRegistrationClosed signals participation outside the weekly window.
	ErrRegistrationClosed = errors.New("lottery registration is closed")
	// ErrAlreadyParticipated signals a second ticket in the same week.
	ErrAlreadyParticipated = errors.New("already participated this week")
	// ErrRecentWinner signals a win inside the trailing six months.
	ErrRecentWinner = errors.New("won within the last six months")
	// ErrNotWinner signals that the user holds no winning ticket.
	ErrNotWinner = errors.New("no winning ticket for this user")
	// ErrDeadlinePassed signals winner info submitted after Thursday 08:00.
	ErrDeadlinePassed = errors.New("winner info deadline has passed")
)

// Defaults written onto winning tickets at draw time.
const (
	defaultReceivedDate   = "پنجشنبه"
	defaultSelectedPeriod = "ناهار"
)

const recentWinLookback = 180 * 24 * time.Hour

// WinnerInfo is the set of fields a winner must complete before the deadline.
type WinnerInfo struct {
	FullName       string
	NationalID     string
	ReceivedDate   string
	SelectedPeriod string
	Quantity       int
}

// LotteryService implements the weekly draw. All window arithmetic is done in
// Asia/Tehran: registration runs Saturday 08:00 through Wednesday 20:00, the
// draw happens Wednesday 20:00, and winners have until Thursday 08:00 to
// complete their info.
type LotteryService struct {
	db           *gorm.DB
	sms          SMSSender
	winnersCount int
	smsTemplate  string
	loc          *time.Location
	logger       *zap.Logger

	// now is injectable for window tests.
	now func() time.Time
}

// NewLotteryService constructs a LotteryService.
func NewLotteryService(db *gorm.DB, sms SMSSender, winnersCount int, smsTemplate string, logger *zap.Logger) *LotteryService {
	return NewLotteryServiceWithClock(db, sms, winnersCount, smsTemplate, logger, time.Now)
}

// NewLotteryServiceWithClock constructs a LotteryService with an injected
// clock, so window and deadline behavior can be pinned in tests.
func NewLotteryServiceWithClock(db *gorm.DB, sms SMSSender, winnersCount int, smsTemplate string, logger *zap.Logger, now func() time.Time) *LotteryService {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		// Asia/Tehran is UTC+3:30 year-round since 2022.
		loc = time.FixedZone("Asia/Tehran", int((3*time.Hour + 30*time.Minute).Seconds()))
	}

	return &LotteryService{
		db:           db,
		sms:          sms,
		winnersCount: winnersCount,
		smsTemplate:  smsTemplate,
		loc:          loc,
		logger:       logger,
		now:          now,
	}
}

// WeekStart returns the most recent Saturday 08:00 Tehran time, in UTC. On a
// Saturday before 08:00 the previous week still applies.
func (s *LotteryService) WeekStart() time.Time {
	now := s.now().In(s.loc)

	days := (int(now.Weekday()) - int(time.Saturday) + 7) % 7
	if days == 0 && now.Hour() < 8 {
		days = 7
	}

	saturday := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, s.loc)
	return saturday.AddDate(0, 0, -days).UTC()
}

// IsRegistrationOpen reports whether participation is currently allowed:
// Saturday from 08:00, all of Sunday through Tuesday, Wednesday until 20:00.
func (s *LotteryService) IsRegistrationOpen() bool {
	now := s.now().In(s.loc)

	switch now.Weekday() {
	case time.Saturday:
		return now.Hour() >= 8
	case time.Sunday, time.Monday, time.Tuesday:
		return true
	case time.Wednesday:
		return now.Hour() < 20
	default:
		return false
	}
}

// InfoDeadline returns the Thursday 08:00 Tehran deadline following the
// ticket's creation.
func (s *LotteryService) InfoDeadline(createdAt time.Time) time.Time {
	created := createdAt.In(s.loc)

	days := (int(time.Thursday) - int(created.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}

	deadline := time.Date(created.Year(), created.Month(), created.Day(), 8, 0, 0, 0, s.loc)
	return deadline.AddDate(0, 0, days)
}

// Participate creates a pending ticket for the user, enforcing the weekly
// window, the one-ticket-per-week rule, and the six-month winner cooldown.
func (s *LotteryService) Participate(ctx context.Context, userID uuid.UUID) (*models.Ticket, error) {
	if !s.IsRegistrationOpen() {
		return nil, ErrRegistrationClosed
	}

	weekStart := s.WeekStart()

	var thisWeek int64
	err := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("user_id = ? AND created_at >= ?", userID, weekStart).
		Count(&thisWeek).Error
	if err != nil {
		return nil, err
	}
	if thisWeek > 0 {
		return nil, ErrAlreadyParticipated
	}

	sixMonthsAgo := s.now().Add(-recentWinLookback)

	var recentWins int64
	err = s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("user_id = ? AND status = ? AND created_at >= ?", userID, models.TicketStatusWon, sixMonthsAgo).
		Count(&recentWins).Error
	if err != nil {
		return nil, err
	}
	if recentWins > 0 {
		return nil, ErrRecentWinner
	}

	ticket := &models.Ticket{
		UserID: userID,
		Status: models.TicketStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, err
	}

	return ticket, nil
}

// WinnerTicket returns the user's current winning ticket, or ErrNotWinner.
func (s *LotteryService) WinnerTicket(ctx context.Context, userID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.TicketStatusWon).
		Order("created_at desc").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotWinner
		}
		return nil, err
	}
	return &ticket, nil
}

// CompleteWinnerInfo records a winner's delivery details before the deadline.
func (s *LotteryService) CompleteWinnerInfo(ctx context.Context, userID uuid.UUID, info WinnerInfo) (*models.Ticket, error) {
	ticket, err := s.WinnerTicket(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.now().In(s.loc).Before(s.InfoDeadline(ticket.CreatedAt)) {
		return nil, ErrDeadlinePassed
	}

	quantity := info.Quantity
	updates := map[string]interface{}{
		"full_name":       info.FullName,
		"national_id":     info.NationalID,
		"received_date":   info.ReceivedDate,
		"selected_period": info.SelectedPeriod,
		"quantity":        quantity,
	}
	if err := s.db.WithContext(ctx).Model(ticket).Updates(updates).Error; err != nil {
		return nil, err
	}

	ticket.FullName = info.FullName
	ticket.NationalID = info.NationalID
	ticket.ReceivedDate = info.ReceivedDate
	ticket.SelectedPeriod = info.SelectedPeriod
	ticket.Quantity = &quantity
	return ticket, nil
}

// UserTickets returns the user's tickets, newest first.
func (s *LotteryService) UserTickets(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Ticket, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Ticket{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []models.Ticket
	err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&tickets).Error
	if err != nil {
		return nil, 0, err
	}

	return tickets, total, nil
}

// CurrentWeekWinners returns this week's winning tickets, newest first.
func (s *LotteryService) CurrentWeekWinners(ctx context.Context) ([]models.Ticket, error) {
	var winners []models.Ticket
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", models.TicketStatusWon, s.WeekStart()).
		Order("created_at desc").
		Find(&winners).Error
	return winners, err
}

// RunDraw selects random winners from this week's pending tickets, marks them
// won with default delivery values, copies each user's most recent completed
// info, and notifies winners over SMS. SMS failures are logged and do not
// fail the draw.
func (s *LotteryService) RunDraw(ctx context.Context) ([]models.Ticket, error) {
	var pending []models.Ticket
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", models.TicketStatusPending, s.WeekStart()).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		s.logger.Warn("no pending tickets for current week, skipping draw")
		return nil, nil
	}

	count := s.winnersCount
	if count > len(pending) {
		count = len(pending)
	}

	rand.Shuffle(len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	})
	selected := pending[:count]

	winnerIDs := make([]uuid.UUID, 0, count)
	for _, ticket := range selected {
		updates := map[string]interface{}{
			"status":          models.TicketStatusWon,
			"received_date":   defaultReceivedDate,
			"selected_period": defaultSelectedPeriod,
		}

		if previous := s.previousInfo(ctx, ticket.UserID); previous != nil {
			updates["full_name"] = previous.FullName
			updates["national_id"] = previous.NationalID
		}

		err := s.db.WithContext(ctx).
			Model(&models.Ticket{}).
			Where("id = ?", ticket.ID).
			Updates(updates).Error
		if err != nil {
			return nil, err
		}
		winnerIDs = append(winnerIDs, ticket.ID)
	}

	var winners []models.Ticket
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("id IN ?", winnerIDs).
		Find(&winners).Error
	if err != nil {
		return nil, err
	}

	for _, winner := range winners {
		if winner.User == nil {
			continue
		}
		if err := s.sms.SendTemplate(ctx, winner.User.PhoneNumber, winner.TicketNumber, s.smsTemplate); err != nil {
			s.logger.Error("failed to notify winner",
				zap.Error(err),
				zap.String("ticket_number", winner.TicketNumber),
				zap.String("phone", winner.User.PhoneNumber),
			)
			continue
		}
		s.logger.Info("winner notified",
			zap.String("ticket_number", winner.TicketNumber),
			zap.String("phone", winner.User.PhoneNumber),
		)
	}

	s.logger.Info("draw completed", zap.Int("winners", len(winners)))
	return winners, nil
}

// CancelIncompleteWinners cancels winning tickets whose info deadline has
// passed without complete delivery details.
func (s *LotteryService) CancelIncompleteWinners(ctx context.Context) (int, error) {
	var won []models.Ticket
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TicketStatusWon).
		Find(&won).Error
	if err != nil {
		return 0, err
	}

	now := s.now().In(s.loc)
	cancelled := 0

	for _, ticket := range won {
		if now.Before(s.InfoDeadline(ticket.CreatedAt)) {
			continue
		}
		if ticket.HasCompleteInfo() {
			continue
		}

		err := s.db.WithContext(ctx).
			Model(&models.Ticket{}).
			Where("id = ?", ticket.ID).
			Update("status", models.TicketStatusCancelled).Error
		if err != nil {
			return cancelled, err
		}
		cancelled++
		s.logger.Info("cancelled incomplete winner ticket",
			zap.String("ticket_number", ticket.TicketNumber))
	}

	return cancelled, nil
}

// previousInfo finds the user's most recent non-cancelled ticket that carries
// completed name and national id, for pre-filling a new win.
func (s *LotteryService) previousInfo(ctx context.Context, userID uuid.UUID) *models.Ticket {
	var previous models.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND full_name <> '' AND national_id <> '' AND status <> ?",
			userID, models.TicketStatusCancelled).
		Order("created_at desc").
		First(&previous).Error
	if err != nil {
		return nil
	}
	return &previous
}
