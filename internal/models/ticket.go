package models

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ticket statuses cover the full lottery lifecycle.
const (
	TicketStatusPending   = "pending"
	TicketStatusActive    = "active"
	TicketStatusWon       = "won"
	TicketStatusExpired   = "expired"
	TicketStatusCancelled = "cancelled"
)

const ticketNumberLength = 10

const ticketNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Ticket is a weekly lottery entry owned by a user.
type Ticket struct {
	BaseModel
	UserID         uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User           *User     `json:"-"`
	TicketNumber   string    `gorm:"uniqueIndex;size:20" json:"ticket_number"`
	NationalID     string    `gorm:"size:10" json:"national_id"`
	FullName       string    `gorm:"size:200" json:"full_name"`
	ReceivedDate   string    `gorm:"size:100" json:"received_date"`
	SelectedPeriod string    `gorm:"size:100" json:"selected_period"`
	Quantity       *int      `json:"quantity"`
	Status         string    `gorm:"index;size:20;default:pending" json:"status"`
}

// HasCompleteInfo reports whether the winner filled in every required field.
func (t *Ticket) HasCompleteInfo() bool {
	return t.FullName != "" && t.NationalID != "" &&
		t.ReceivedDate != "" && t.SelectedPeriod != "" && t.Quantity != nil
}

// BeforeCreate assigns a server-generated ticket number when none is set.
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if err := t.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}

	if t.TicketNumber != "" {
		return nil
	}

	for {
		number, err := generateTicketNumber()
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&Ticket{}).Where("ticket_number = ?", number).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			t.TicketNumber = number
			return nil
		}
	}
}

func generateTicketNumber() (string, error) {
	number := make([]byte, ticketNumberLength)
	max := big.NewInt(int64(len(ticketNumberAlphabet)))
	for i := range number {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		number[i] = ticketNumberAlphabet[n.Int64()]
	}
	return string(number), nil
}
