package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/config"
	"social-service/internal/hashing"
	"social-service/internal/mailer"
	"social-service/internal/models"
)

type plainHasher struct{}

func (plainHasher) HashOTP(code string) (string, error) { return "h:" + code, nil }
func (plainHasher) VerifyOTP(code, encoded string) (bool, error) {
	return encoded == "h:"+code, nil
}

type notification struct {
	to   string
	kind mailer.Kind
	otp  string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (c *captureNotifier) Notify(_ context.Context, to string, k mailer.Kind, _ string, otp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, notification{to: to, kind: k, otp: otp})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var otpCfg = config.OTPConfig{ExpireMinutes: 10, MaxAttempts: 3, BanMinutes: 5}

func newTestEngine() (*Engine, *fakeClock, *captureNotifier) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	n := &captureNotifier{}
	return NewEngine(plainHasher{}, n, otpCfg, zap.NewNop(), WithClock(clock.now)), clock, n
}

func TestGenerateShape(t *testing.T) {
	e, clock, _ := newTestEngine()

	code, rec, err := e.Generate(models.OTPVerify)
	require.NoError(t, err)
	assert.Len(t, code, codeLength)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(alphabet, r))
	}
	assert.Equal(t, "h:"+code, rec.CodeHash)
	assert.Equal(t, clock.t.Add(10*time.Minute), *rec.ExpireAt)
	assert.Zero(t, rec.Attempts)
	assert.Nil(t, rec.BannedUntil)
}

func TestVerifyCorrectCodeSpendsRecord(t *testing.T) {
	e, _, _ := newTestEngine()
	code, rec, err := e.Generate(models.OTPVerify)
	require.NoError(t, err)
	rec.Attempts = 2

	next, res := e.Verify(code, &rec)
	assert.True(t, res.Valid)
	assert.NoError(t, res.Err())
	assert.Empty(t, next.CodeHash)
	assert.Nil(t, next.ExpireAt)
	assert.Zero(t, next.Attempts)
	assert.Nil(t, next.BannedUntil)

	// the input record is left untouched
	assert.Equal(t, 2, rec.Attempts)
}

func TestVerifyNotFoundAndExpired(t *testing.T) {
	e, clock, _ := newTestEngine()

	_, res := e.Verify("abcde", nil)
	assert.Equal(t, ReasonNotFound, res.Reason)

	code, rec, err := e.Generate(models.OTPReset)
	require.NoError(t, err)
	clock.advance(11 * time.Minute)
	_, res = e.Verify(code, &rec)
	assert.Equal(t, ReasonExpired, res.Reason)

	spent, res := e.Verify(code, &models.OTPRecord{Type: models.OTPReset})
	assert.Equal(t, ReasonNotFound, res.Reason)
	assert.NotNil(t, spent)
}

func TestVerifyBanLifecycle(t *testing.T) {
	e, clock, _ := newTestEngine()
	code, rec, err := e.Generate(models.OTPTwoFactorAuth)
	require.NoError(t, err)

	cur := &rec
	var res Result
	for i := 1; i < otpCfg.MaxAttempts; i++ {
		cur, res = e.Verify("wrong", cur)
		assert.Equal(t, ReasonInvalid, res.Reason)
		assert.Equal(t, i, cur.Attempts)
	}

	cur, res = e.Verify("wrong", cur)
	assert.Equal(t, ReasonBanned, res.Reason)
	assert.Zero(t, res.RemainingSeconds, "the banning call reports no countdown")
	require.NotNil(t, cur.BannedUntil)

	clock.advance(30 * time.Second)
	cur, res = e.Verify(code, cur)
	assert.Equal(t, ReasonBanned, res.Reason)
	assert.Equal(t, 270, res.RemainingSeconds)

	clock.advance(500 * time.Millisecond)
	cur, res = e.Verify(code, cur)
	assert.Equal(t, 270, res.RemainingSeconds, "rounded up")

	clock.advance(time.Minute)
	_, res = e.Verify(code, cur)
	assert.Less(t, res.RemainingSeconds, 270)

	clock.advance(4 * time.Minute)
	cur, res = e.Verify("wrong", cur)
	assert.Equal(t, ReasonInvalid, res.Reason, "ban clears and counting restarts")
	assert.Equal(t, 1, cur.Attempts)
	assert.Nil(t, cur.BannedUntil)

	_, res = e.Verify(code, cur)
	assert.True(t, res.Valid)
}

func TestResultErr(t *testing.T) {
	err := Result{Reason: ReasonBanned, RemainingSeconds: 42}.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrBadRequest))

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "OTP_BANNED", appErr.Message)
	assert.Equal(t, 42, appErr.Context["remainingSeconds"])
}

func TestCheckWritesBackIntoUser(t *testing.T) {
	e, _, _ := newTestEngine()
	_, rec, err := e.Generate(models.OTPVerify)
	require.NoError(t, err)
	user := &models.User{OTPs: []models.OTPRecord{rec}}

	res := e.Check(user, models.OTPVerify, "zzzzz")
	assert.Equal(t, ReasonInvalid, res.Reason)
	assert.Equal(t, 1, user.OTPs[0].Attempts)

	res = e.Check(user, models.OTPReset, "zzzzz")
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestIssueOrReject(t *testing.T) {
	e, clock, n := newTestEngine()
	user := &models.User{Email: "alice@x.com", FirstName: "Alice", LastName: "Smith"}

	persisted := 0
	persist := func(context.Context, *models.User) error {
		persisted++
		return nil
	}

	require.NoError(t, e.IssueOrReject(context.Background(), user, models.OTPVerify, persist))
	require.Len(t, user.OTPs, 1)
	assert.Equal(t, 1, persisted)
	require.Len(t, n.sent, 1)
	assert.Equal(t, mailer.KindVerify, n.sent[0].kind)
	assert.Equal(t, "alice@x.com", n.sent[0].to)

	err := e.IssueOrReject(context.Background(), user, models.OTPVerify, persist)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An OTP for verify has already been sent")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, string(ReasonAlreadySent), appErr.Context["reason"])
	assert.Equal(t, 1, persisted)

	require.NoError(t, e.IssueOrReject(context.Background(), user, models.OTPReset, persist))
	assert.Len(t, user.OTPs, 2, "other active types are kept")

	clock.advance(11 * time.Minute)
	require.NoError(t, e.IssueOrReject(context.Background(), user, models.OTPTwoFactorAuth, persist))
	require.Len(t, user.OTPs, 1, "expired codes are pruned")
	assert.Equal(t, models.OTPTwoFactorAuth, user.OTPs[0].Type)
}

func TestIssueOrRejectPersistFailureSkipsEmail(t *testing.T) {
	e, _, n := newTestEngine()
	user := &models.User{Email: "a@x.com"}

	err := e.IssueOrReject(context.Background(), user, models.OTPReset, func(context.Context, *models.User) error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.Empty(t, n.sent)
}

func TestVerifyWithArgon2Hasher(t *testing.T) {
	h := hashing.NewHasher(config.HashingConfig{Argon2MemoryCost: 1024, Argon2TimeCost: 1, Argon2Parallelism: 1, Pepper: "p", PepperVersion: 1})
	e := NewEngine(h, &captureNotifier{}, otpCfg, zap.NewNop())

	code, rec, err := e.Generate(models.OTPChangeEmail)
	require.NoError(t, err)
	assert.NotContains(t, rec.CodeHash, code)

	_, res := e.Verify(code, &rec)
	assert.True(t, res.Valid)
}
