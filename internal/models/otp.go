package models

import "time"

// OTP purposes.
const (
	OTPPurposeSignup = "signup"
	OTPPurposeReset  = "reset"
	OTPPurposeVerify = "verify"
)

// OTP keeps track of one-time codes mailed to users. Only the bcrypt hash of
// the code is stored.
type OTP struct {
	BaseModel   `bson:",inline"`
	Email       string     `gorm:"index:idx_otp_email_purpose" json:"email" bson:"email"`
	Purpose     string     `gorm:"index:idx_otp_email_purpose" json:"purpose" bson:"purpose"`
	CodeHash    string     `json:"-" bson:"codeHash"`
	Attempts    int        `json:"attempts" bson:"attempts"`
	ExpiresAt   time.Time  `json:"expiresAt" bson:"expiresAt"`
	UsedAt      *time.Time `json:"usedAt" bson:"usedAt"`
	Invalidated bool       `json:"invalidated" bson:"invalidated"`
}

// ValidOTPPurpose reports whether purpose is one of the known OTP purposes.
func ValidOTPPurpose(purpose string) bool {
	switch purpose {
	case OTPPurposeSignup, OTPPurposeReset, OTPPurposeVerify:
		return true
	}
	return false
}
