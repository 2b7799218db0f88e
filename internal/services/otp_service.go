package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/haramapp/internal/models"
	"github.com/example/haramapp/internal/utils"
)

var (
	// ErrRateLimited signals too many OTP requests for one phone number.
	ErrRateLimited = errors.New("too many OTP requests, please try again later")
	// ErrInvalidPurpose signals a purpose outside register/login.
	ErrInvalidPurpose = errors.New("invalid OTP purpose")

	// The verification failures below are deliberately collapsed into one
	// generic message at the HTTP layer so a caller cannot distinguish a
	// wrong code from an expired or consumed one.
	ErrOTPNotFound    = errors.New("no active code for this phone number")
	ErrOTPExpired     = errors.New("code has expired")
	ErrOTPMismatch    = errors.New("code does not match")
	ErrOTPAlreadyUsed = errors.New("code already used")
)

// OTPService issues and verifies hashed one-time codes.
type OTPService struct {
	db         *gorm.DB
	redis      *redis.Client
	codeLength int
	expiry     time.Duration
	limitCount int
	limitWin   time.Duration
	logger     *zap.Logger
}

// NewOTPService constructs an OTPService. The redis client is optional; when
// nil, rate limiting falls back to counting recent OTP rows in the database.
func NewOTPService(db *gorm.DB, redisClient *redis.Client, codeLength int, expiry time.Duration, limitCount int, limitWindow time.Duration, logger *zap.Logger) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OTPService{
		db:         db,
		redis:      redisClient,
		codeLength: codeLength,
		expiry:     expiry,
		limitCount: limitCount,
		limitWin:   limitWindow,
		logger:     logger,
	}
}

// Create generates a numeric code, stores its bcrypt hash with an expiry, and
// returns the plaintext code for SMS delivery. The plaintext never touches the
// database.
func (s *OTPService) Create(ctx context.Context, phoneNumber, purpose string) (string, *models.OTPCode, error) {
	if !isValidPurpose(purpose) {
		return "", nil, ErrInvalidPurpose
	}

	if err := s.checkRateLimit(ctx, phoneNumber); err != nil {
		return "", nil, err
	}

	code, err := generateNumericCode(s.codeLength)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate code: %w", err)
	}

	codeHash, err := utils.HashCode(code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash code: %w", err)
	}

	otp := &models.OTPCode{
		PhoneNumber: phoneNumber,
		CodeHash:    codeHash,
		Purpose:     purpose,
		ExpiresAt:   time.Now().Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).Create(otp).Error; err != nil {
		return "", nil, err
	}

	return code, otp, nil
}

// Verify checks a submitted code against the most recent unused record for
// (phone, purpose) and consumes it. Consumption is a single conditional
// update so that concurrent verify attempts with the same code succeed at
// most once.
func (s *OTPService) Verify(ctx context.Context, phoneNumber, code, purpose string) (*models.OTPCode, error) {
	if !isValidPurpose(purpose) {
		return nil, ErrInvalidPurpose
	}

	var otp models.OTPCode
	err := s.db.WithContext(ctx).
		Where("phone_number = ? AND purpose = ? AND is_used = ?", phoneNumber, purpose, false).
		Order("created_at desc").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}

	if otp.IsExpired() {
		return nil, ErrOTPExpired
	}

	if !utils.CheckCode(otp.CodeHash, code) {
		return nil, ErrOTPMismatch
	}

	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("id = ? AND is_used = ?", otp.ID, false).
		Updates(map[string]interface{}{"is_used": true, "used_at": now})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race against a concurrent verify.
		return nil, ErrOTPAlreadyUsed
	}

	otp.IsUsed = true
	otp.UsedAt = &now
	return &otp, nil
}

// CleanupExpired deletes OTP rows past their expiry. Run periodically.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.OTPCode{})
	return result.RowsAffected, result.Error
}

// checkRateLimit enforces the per-phone request budget. With redis it is a
// fixed INCR window; without, it counts OTP rows created inside the window.
func (s *OTPService) checkRateLimit(ctx context.Context, phoneNumber string) error {
	if s.limitCount <= 0 {
		return nil
	}

	if s.redis != nil {
		key := "otp:ratelimit:" + phoneNumber

		count, err := s.redis.Incr(ctx, key).Result()
		if err != nil {
			s.logger.Error("otp rate limit check failed, falling back to database",
				zap.Error(err), zap.String("phone", phoneNumber))
			return s.checkRateLimitDB(ctx, phoneNumber)
		}
		if count == 1 {
			s.redis.Expire(ctx, key, s.limitWin)
		}
		if count > int64(s.limitCount) {
			return ErrRateLimited
		}
		return nil
	}

	return s.checkRateLimitDB(ctx, phoneNumber)
}

func (s *OTPService) checkRateLimitDB(ctx context.Context, phoneNumber string) error {
	since := time.Now().Add(-s.limitWin)

	var recent int64
	err := s.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("phone_number = ? AND created_at >= ?", phoneNumber, since).
		Count(&recent).Error
	if err != nil {
		return err
	}

	if recent >= int64(s.limitCount) {
		return ErrRateLimited
	}
	return nil
}

func isValidPurpose(purpose string) bool {
	return purpose == models.OTPPurposeRegister || purpose == models.OTPPurposeLogin
}

func generateNumericCode(length int) (string, error) {
	code := make([]byte, length)
	max := big.NewInt(10)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
