// Package testutil provides shared helpers for package tests: an isolated
// in-memory database, a miniredis-backed client, and a recording SMS sender.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/haramapp/internal/database"
)

// NewTestDB opens an isolated in-memory sqlite database with the full schema
// applied.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps the shared in-memory database alive and
	// serializes concurrent writers.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// NewTestRedis starts a miniredis server and returns a client bound to it.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// SMSMessage is one message captured by SMSRecorder.
type SMSMessage struct {
	Phone    string
	Token    string
	Template string
}

// SMSRecorder implements services.SMSSender and records every message instead
// of calling a gateway. Set Err to simulate delivery failure.
type SMSRecorder struct {
	mu       sync.Mutex
	Messages []SMSMessage
	Err      error
}

// SendOTP records a one-time code delivery.
func (r *SMSRecorder) SendOTP(ctx context.Context, phoneNumber, code string) error {
	return r.SendTemplate(ctx, phoneNumber, code, "otp")
}

// SendTemplate records a template delivery.
func (r *SMSRecorder) SendTemplate(ctx context.Context, phoneNumber, token, template string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.Messages = append(r.Messages, SMSMessage{Phone: phoneNumber, Token: token, Template: template})
	return nil
}

// LastToken returns the most recent token sent to the phone number.
func (r *SMSRecorder) LastToken(phoneNumber string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Phone == phoneNumber {
			return r.Messages[i].Token, nil
		}
	}
	return "", errors.New("no message recorded for " + phoneNumber)
}

// Count returns the number of recorded messages.
func (r *SMSRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Messages)
}
