package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSMSNotConfigured is returned when the gateway API key or template is
// missing from configuration.
var ErrSMSNotConfigured = errors.New("sms gateway is not configured")

// SMSSender delivers one-time codes and notification tokens over SMS.
type SMSSender interface {
	SendOTP(ctx context.Context, phoneNumber, code string) error
	SendTemplate(ctx context.Context, phoneNumber, token, template string) error
}

// KavenegarService sends template SMS messages through the Kavenegar
// verify/lookup API.
type KavenegarService struct {
	apiKey      string
	otpTemplate string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
}

// NewKavenegarService creates a Kavenegar SMS client.
func NewKavenegarService(apiKey, otpTemplate, baseURL string, logger *zap.Logger) *KavenegarService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KavenegarService{
		apiKey:      apiKey,
		otpTemplate: otpTemplate,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type kavenegarReturn struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type kavenegarResponse struct {
	Return kavenegarReturn `json:"return"`
}

// SendOTP delivers a one-time code using the configured OTP template.
func (s *KavenegarService) SendOTP(ctx context.Context, phoneNumber, code string) error {
	return s.SendTemplate(ctx, phoneNumber, code, s.otpTemplate)
}

// SendTemplate delivers a token to a phone number using the given template.
func (s *KavenegarService) SendTemplate(ctx context.Context, phoneNumber, token, template string) error {
	if s.apiKey == "" || template == "" {
		return ErrSMSNotConfigured
	}

	endpoint := fmt.Sprintf("%s/%s/verify/lookup.json", s.baseURL, s.apiKey)

	form := url.Values{}
	form.Set("template", template)
	form.Set("receptor", phoneNumber)
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("kavenegar request failed", zap.Error(err))
		return fmt.Errorf("kavenegar request failed: %w", err)
	}
	defer resp.Body.Close()

	var body kavenegarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("kavenegar returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("kavenegar response decode failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK || body.Return.Status != http.StatusOK {
		s.logger.Error("kavenegar rejected message",
			zap.Int("http_status", resp.StatusCode),
			zap.Int("provider_status", body.Return.Status),
			zap.String("provider_message", body.Return.Message),
		)
		return fmt.Errorf("kavenegar error (status %d): %s", body.Return.Status, body.Return.Message)
	}

	return nil
}
