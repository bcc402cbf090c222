package models

import "time"

type AuthEventType string

const (
	EventSignup             AuthEventType = "signup"
	EventEmailConfirmed     AuthEventType = "email_confirmed"
	EventLogin              AuthEventType = "login"
	EventLoginChallenge     AuthEventType = "login_2fa_challenge"
	EventLoginFailed        AuthEventType = "login_failed"
	EventOTPBanned          AuthEventType = "otp_banned"
	EventLogout             AuthEventType = "logout"
	EventTokenRefreshed     AuthEventType = "token_refreshed"
	EventPasswordReset      AuthEventType = "password_reset"
	EventPasswordChanged    AuthEventType = "password_changed"
	EventTwoFactorEnabled   AuthEventType = "2fa_enabled"
	EventTwoFactorDisabled  AuthEventType = "2fa_disabled"
	EventAccountDeactivated AuthEventType = "account_deactivated"
)

// AuthEvent is one row of the authentication audit trail.
type AuthEvent struct {
	UserID    string        `ch:"user_id"`
	EventDate string        `ch:"event_date"`
	EventTime time.Time     `ch:"event_time"`
	EventType AuthEventType `ch:"event_type"`
	IPAddress string        `ch:"ip_address"`
	UserAgent string        `ch:"user_agent"`
	TokenID   string        `ch:"token_id"`
	Details   string        `ch:"details"`
}
