package models

import "time"

type OTPType string

const (
	OTPVerify        OTPType = "verify"
	OTPReset         OTPType = "reset"
	OTPChangeEmail   OTPType = "change-email"
	OTPTwoFactorAuth OTPType = "two-factor-auth"
)

// OTPRecord is a one-time code owned by a user. Only the hash is stored.
type OTPRecord struct {
	Type        OTPType    `bson:"otpType" json:"otpType"`
	CodeHash    string     `bson:"otp,omitempty" json:"-"`
	ExpireAt    *time.Time `bson:"expireAt,omitempty" json:"expireAt,omitempty"`
	Attempts    int        `bson:"attempts" json:"attempts"`
	BannedUntil *time.Time `bson:"bannedUntil,omitempty" json:"bannedUntil,omitempty"`
}

// Active reports whether the record still holds an unexpired code at now.
func (r *OTPRecord) Active(now time.Time) bool {
	return r.CodeHash != "" && r.ExpireAt != nil && now.Before(*r.ExpireAt)
}
