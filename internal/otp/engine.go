// Package otp issues and verifies one-time codes with attempt counting and
// temporary bans.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/config"
	"social-service/internal/mailer"
	"social-service/internal/models"
)

const (
	alphabet   = "12345678abcdef"
	codeLength = 5
)

type Reason string

const (
	ReasonNotFound Reason = "OTP_NOT_FOUND"
	ReasonExpired  Reason = "OTP_EXPIRED"
	ReasonBanned   Reason = "OTP_BANNED"
	ReasonInvalid  Reason = "OTP_INVALID"

	ReasonAlreadySent Reason = "OTP_ALREADY_SENT"
)

type Result struct {
	Valid            bool
	Reason           Reason
	RemainingSeconds int
}

// Err converts a failed result into a BadRequest carrying the reason code.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	ctx := apperror.Context{"reason": string(r.Reason)}
	if r.RemainingSeconds > 0 {
		ctx["remainingSeconds"] = r.RemainingSeconds
	}
	return apperror.BadRequest(string(r.Reason), ctx)
}

// Hasher is the one-way function applied to codes.
type Hasher interface {
	HashOTP(code string) (string, error)
	VerifyOTP(code, encoded string) (bool, error)
}

// Notifier delivers a code to its owner.
type Notifier interface {
	Notify(ctx context.Context, to string, k mailer.Kind, userName, otp string)
}

// Persist stores the user document after its OTP list changed.
type Persist func(ctx context.Context, user *models.User) error

type Engine struct {
	hasher   Hasher
	notifier Notifier
	cfg      config.OTPConfig
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(hasher Hasher, notifier Notifier, cfg config.OTPConfig, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		hasher:   hasher,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate returns a fresh plaintext code and a record holding only its hash.
func (e *Engine) Generate(t models.OTPType) (string, models.OTPRecord, error) {
	code, err := randomCode()
	if err != nil {
		return "", models.OTPRecord{}, err
	}
	hash, err := e.hasher.HashOTP(code)
	if err != nil {
		return "", models.OTPRecord{}, fmt.Errorf("hash otp: %w", err)
	}
	expireAt := e.now().Add(e.cfg.Expiry())
	return code, models.OTPRecord{
		Type:     t,
		CodeHash: hash,
		ExpireAt: &expireAt,
	}, nil
}

// Verify checks input against rec and returns the record's next state. The
// returned record must be persisted whatever the result, so attempt counts
// and bans stick.
func (e *Engine) Verify(input string, rec *models.OTPRecord) (*models.OTPRecord, Result) {
	if rec == nil || rec.CodeHash == "" || rec.ExpireAt == nil {
		return rec, Result{Reason: ReasonNotFound}
	}

	now := e.now()
	next := *rec

	if now.After(*next.ExpireAt) {
		return &next, Result{Reason: ReasonExpired}
	}

	if next.BannedUntil != nil && !next.BannedUntil.After(now) {
		next.BannedUntil = nil
		next.Attempts = 0
	}

	if next.BannedUntil != nil {
		remaining := int(math.Ceil(next.BannedUntil.Sub(now).Seconds()))
		return &next, Result{Reason: ReasonBanned, RemainingSeconds: remaining}
	}

	ok, err := e.hasher.VerifyOTP(input, next.CodeHash)
	if err != nil {
		e.logger.Warn("otp hash could not be verified", zap.String("otp_type", string(next.Type)), zap.Error(err))
	}
	if !ok {
		next.Attempts++
		if next.Attempts >= e.cfg.MaxAttempts {
			bannedUntil := now.Add(e.cfg.BanDuration())
			next.BannedUntil = &bannedUntil
			return &next, Result{Reason: ReasonBanned}
		}
		return &next, Result{Reason: ReasonInvalid}
	}

	return &models.OTPRecord{Type: next.Type}, Result{Valid: true}
}

// Check verifies input against the user's OTP of type t and writes the
// record's next state back into user.OTPs.
func (e *Engine) Check(user *models.User, t models.OTPType, input string) Result {
	idx := user.FindOTP(t)
	if idx < 0 {
		_, res := e.Verify(input, nil)
		return res
	}
	next, res := e.Verify(input, &user.OTPs[idx])
	user.OTPs[idx] = *next
	return res
}

// IssueOrReject refuses while an unexpired code of type t exists; otherwise it
// drops expired codes of every type, appends a new one, persists the user and
// sends the code without waiting for delivery.
func (e *Engine) IssueOrReject(ctx context.Context, user *models.User, t models.OTPType, persist Persist) error {
	kind, err := mailKind(t)
	if err != nil {
		return err
	}

	now := e.now()
	for i := range user.OTPs {
		if user.OTPs[i].Type == t && user.OTPs[i].Active(now) {
			return apperror.BadRequest(
				fmt.Sprintf("An OTP for %s has already been sent. Please check your email.", t),
				apperror.Context{"reason": string(ReasonAlreadySent)},
			)
		}
	}

	code, rec, err := e.Generate(t)
	if err != nil {
		return err
	}

	kept := make([]models.OTPRecord, 0, len(user.OTPs)+1)
	for _, o := range user.OTPs {
		if o.Type != t && o.Active(now) {
			kept = append(kept, o)
		}
	}
	user.OTPs = append(kept, rec)

	if err := persist(ctx, user); err != nil {
		return err
	}

	e.notifier.Notify(ctx, user.Email, kind, user.FullName(), code)
	return nil
}

func mailKind(t models.OTPType) (mailer.Kind, error) {
	switch t {
	case models.OTPVerify:
		return mailer.KindVerify, nil
	case models.OTPReset:
		return mailer.KindReset, nil
	case models.OTPChangeEmail:
		return mailer.KindChangeEmail, nil
	case models.OTPTwoFactorAuth:
		return mailer.KindTwoFactorAuth, nil
	}
	return "", fmt.Errorf("unknown otp type %q", t)
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
