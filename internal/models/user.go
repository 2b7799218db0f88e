package models

import (
	"time"
)

// OTP purposes scope a code to a single authentication flow.
const (
	OTPPurposeRegister = "register"
	OTPPurposeLogin    = "login"
)

// User represents an account keyed by phone number.
type User struct {
	BaseModel
	PhoneNumber     string `gorm:"uniqueIndex;size:15" json:"phone_number"`
	FullName        string `gorm:"size:200" json:"full_name"`
	NationalID      string `gorm:"size:10" json:"national_id"`
	IsPhoneVerified bool   `json:"is_phone_verified"`
	IsStaff         bool   `json:"-"`
}

// OTPCode stores a hashed one-time code sent to a phone number.
//
// At most one code is considered valid per (phone_number, purpose): the most
// recent unused, unexpired record. Older records are superseded, not deleted.
type OTPCode struct {
	BaseModel
	PhoneNumber string     `gorm:"index:idx_otp_phone_purpose;size:15" json:"phone_number"`
	CodeHash    string     `json:"-"`
	Purpose     string     `gorm:"index:idx_otp_phone_purpose;size:10" json:"purpose"`
	ExpiresAt   time.Time  `json:"expires_at"`
	IsUsed      bool       `gorm:"index:idx_otp_phone_purpose" json:"is_used"`
	UsedAt      *time.Time `json:"used_at"`
}

// IsExpired reports whether the code's validity window has passed.
func (o *OTPCode) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}
