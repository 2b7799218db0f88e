package handlers_test

import (
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/haramapp/internal/models"
	"github.com/example/haramapp/internal/routes"
	"github.com/example/haramapp/internal/services"
	"github.com/example/haramapp/internal/utils"
)

// newLotteryEnv pins the lottery clock to Wednesday noon Tehran time, inside
// the registration window.
func newLotteryEnv(t *testing.T) *testEnv {
	t.Helper()

	env := newTestEnv(t)

	loc, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)
	wednesdayNoon := time.Date(2026, time.January, 7, 12, 0, 0, 0, loc)

	lottery := services.NewLotteryServiceWithClock(env.db, env.sms, 8, "lottery-winner", nil,
		func() time.Time { return wednesdayNoon })
	otp := services.NewOTPService(env.db, nil, env.cfg.OTPCodeLength, env.cfg.OTPExpiry, env.cfg.OTPRateLimitCount, env.cfg.OTPRateLimitWindow, nil)

	app := fiber.New()
	routes.Register(app, env.db, nil, env.cfg, env.sms, otp, lottery, nil)
	env.app = app
	return env
}

func TestParticipateRequiresToken(t *testing.T) {
	env := newLotteryEnv(t)

	resp, _ := env.request(t, http.MethodPost, "/api/lottery/participate", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestParticipateOncePerWeek(t *testing.T) {
	env := newLotteryEnv(t)
	access := lotteryToken(t, env, "09123456789")

	resp, body := env.request(t, http.MethodPost, "/api/lottery/participate", nil, access)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ticket, ok := body["ticket"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.TicketStatusPending, ticket["status"])
	assert.Len(t, ticket["ticket_number"], 10)

	resp, _ = env.request(t, http.MethodPost, "/api/lottery/participate", nil, access)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMyTickets(t *testing.T) {
	env := newLotteryEnv(t)
	access := lotteryToken(t, env, "09123456789")

	resp, body := env.request(t, http.MethodGet, "/api/lottery/my-tickets", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])

	resp, _ = env.request(t, http.MethodPost, "/api/lottery/participate", nil, access)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.request(t, http.MethodGet, "/api/lottery/my-tickets", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

func TestWinnerInfoFlow(t *testing.T) {
	env := newLotteryEnv(t)
	access := lotteryToken(t, env, "09123456789")

	// No win yet.
	resp, _ := env.request(t, http.MethodGet, "/api/lottery/complete-winner-info", nil, access)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.request(t, http.MethodPost, "/api/lottery/participate", nil, access)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, env.db.Model(&models.Ticket{}).
		Where("status = ?", models.TicketStatusPending).
		Update("status", models.TicketStatusWon).Error)

	resp, body := env.request(t, http.MethodGet, "/api/lottery/complete-winner-info", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_previous_info"])

	// National id digits may arrive with separators.
	resp, body = env.request(t, http.MethodPost, "/api/lottery/complete-winner-info", fiber.Map{
		"full_name":       "Ali Rezaei",
		"national_id":     "123-456-7890",
		"received_date":   "پنجشنبه",
		"selected_period": "ناهار",
		"quantity":        2,
	}, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ticket, ok := body["ticket"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1234567890", ticket["national_id"])
	assert.EqualValues(t, 2, ticket["quantity"])
}

func TestCompleteWinnerInfoValidation(t *testing.T) {
	env := newLotteryEnv(t)
	access := lotteryToken(t, env, "09123456789")

	resp, _ := env.request(t, http.MethodPost, "/api/lottery/complete-winner-info", fiber.Map{
		"full_name": "Ali Rezaei",
	}, access)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(t, http.MethodPost, "/api/lottery/complete-winner-info", fiber.Map{
		"full_name":       "Ali Rezaei",
		"national_id":     "12345",
		"received_date":   "پنجشنبه",
		"selected_period": "ناهار",
		"quantity":        1,
	}, access)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCurrentWeekWinnersEndpoint(t *testing.T) {
	env := newLotteryEnv(t)
	access := lotteryToken(t, env, "09123456789")

	resp, body := env.request(t, http.MethodGet, "/api/lottery/current-week-winners", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
	assert.NotEmpty(t, body["week_start"])

	respCreate, _ := env.request(t, http.MethodPost, "/api/lottery/participate", nil, access)
	require.Equal(t, http.StatusCreated, respCreate.StatusCode)
	require.NoError(t, env.db.Model(&models.Ticket{}).
		Where("status = ?", models.TicketStatusPending).
		Update("status", models.TicketStatusWon).Error)

	resp, body = env.request(t, http.MethodGet, "/api/lottery/current-week-winners", nil, access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

// lotteryToken creates a verified user directly and returns an access token
// without driving the OTP flow.
func lotteryToken(t *testing.T, env *testEnv, phone string) string {
	t.Helper()

	user := models.User{PhoneNumber: phone, IsPhoneVerified: true}
	require.NoError(t, env.db.Create(&user).Error)

	token, err := utils.GenerateToken(env.cfg.JWTSecret, user.ID, utils.TokenTypeAccess, env.cfg.AccessTokenTTL)
	require.NoError(t, err)
	return token
}
