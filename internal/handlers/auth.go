package handlers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/haramapp/internal/config"
	"github.com/example/haramapp/internal/models"
	"github.com/example/haramapp/internal/services"
	"github.com/example/haramapp/internal/utils"
)

var validate = validator.New()

// AuthHandler bundles dependencies for the OTP authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	otp    *services.OTPService
	sms    services.SMSSender
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, otp *services.OTPService, sms services.SMSSender, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{db: db, cfg: cfg, otp: otp, sms: sms, logger: logger}
}

type requestOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Purpose     string `json:"purpose" validate:"required,oneof=register login"`
}

// RequestOTP generates a one-time code and delivers it over SMS.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "phone_number and a purpose of register or login are required")
	}

	phone, err := utils.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var existing models.User
	userErr := h.db.Where("phone_number = ?", phone).First(&existing).Error
	if userErr != nil && !errors.Is(userErr, gorm.ErrRecordNotFound) {
		return userErr
	}
	userExists := userErr == nil

	switch req.Purpose {
	case models.OTPPurposeLogin:
		if !userExists {
			return fiber.NewError(fiber.StatusNotFound, "user with this phone number does not exist")
		}
	case models.OTPPurposeRegister:
		if userExists {
			return fiber.NewError(fiber.StatusBadRequest, "user with this phone number already exists")
		}
	}

	code, otp, err := h.otp.Create(c.Context(), phone, req.Purpose)
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		}
		return err
	}

	if err := h.sms.SendOTP(c.Context(), phone, code); err != nil {
		// Provider detail stays in the logs; the client gets a generic error.
		h.logger.Error("otp delivery failed", zap.Error(err), zap.String("phone", phone))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to send OTP, please try again later")
	}

	expiresIn := int(time.Until(otp.ExpiresAt).Minutes())

	return c.JSON(fiber.Map{
		"message":            "OTP code has been sent to your phone number",
		"expires_in_minutes": expiresIn,
	})
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Code        string `json:"code" validate:"required,numeric"`
	Purpose     string `json:"purpose" validate:"required,oneof=register login"`
}

// VerifyOTP validates a submitted code and issues a JWT pair. Every
// verification failure maps to the same 401 so the response does not reveal
// whether the code was wrong, expired, or already consumed.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "phone_number, numeric code and a purpose of register or login are required")
	}

	phone, err := utils.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if _, err := h.otp.Verify(c.Context(), phone, req.Code, req.Purpose); err != nil {
		switch {
		case errors.Is(err, services.ErrOTPNotFound),
			errors.Is(err, services.ErrOTPExpired),
			errors.Is(err, services.ErrOTPMismatch),
			errors.Is(err, services.ErrOTPAlreadyUsed):
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired OTP code")
		default:
			return err
		}
	}

	status := fiber.StatusOK

	var user models.User
	lookupErr := h.db.Where("phone_number = ?", phone).First(&user).Error

	switch req.Purpose {
	case models.OTPPurposeRegister:
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			user = models.User{PhoneNumber: phone, IsPhoneVerified: true}
			if err := h.db.Create(&user).Error; err != nil {
				return err
			}
			status = fiber.StatusCreated
		} else if lookupErr != nil {
			return lookupErr
		}
	case models.OTPPurposeLogin:
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		} else if lookupErr != nil {
			return lookupErr
		}
	}

	if !user.IsPhoneVerified {
		if err := h.db.Model(&user).Update("is_phone_verified", true).Error; err != nil {
			return err
		}
		user.IsPhoneVerified = true
	}

	pair, err := utils.GenerateTokenPair(h.cfg.JWTSecret, user.ID, h.cfg.AccessTokenTTL, h.cfg.RefreshTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate tokens")
	}

	return c.Status(status).JSON(fiber.Map{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    userResponse(&user),
	})
}

type refreshTokenRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req refreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "refresh token is required")
	}

	userID, err := utils.ParseToken(h.cfg.JWTSecret, req.Refresh, utils.TokenTypeRefresh)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	access, err := utils.GenerateToken(h.cfg.JWTSecret, userID, utils.TokenTypeAccess, h.cfg.AccessTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{"access": access})
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":                user.ID,
		"phone_number":      user.PhoneNumber,
		"full_name":         user.FullName,
		"national_id":       user.NationalID,
		"is_phone_verified": user.IsPhoneVerified,
		"created_at":        user.CreatedAt,
		"updated_at":        user.UpdatedAt,
	}
}
