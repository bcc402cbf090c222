package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/mailer"
	"social-service/internal/models"
	"social-service/internal/otp"
)

func TestSignUpVerifyLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	created, err := e.authSvc.SignUp(ctx, signUpRequest("Alice", "alice@x.com"))
	require.NoError(t, err)
	assert.False(t, created.IsEmailVerified)
	assert.Equal(t, "5551234567", created.PhoneNumber)

	stored := e.reload(t, created.ID)
	assert.NotEqual(t, "Password1!", stored.Password)
	require.NotNil(t, stored.PhoneEncrypted)
	require.Len(t, stored.OTPs, 1)
	assert.Equal(t, models.OTPVerify, stored.OTPs[0].Type)

	code := e.notifier.lastCode(t, "alice@x.com", mailer.KindVerify)
	confirmed, err := e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "alice@x.com", OTP: code})
	require.NoError(t, err)
	assert.True(t, confirmed.IsEmailVerified)
	assert.Empty(t, e.reload(t, created.ID).OTPs)

	res, err := e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.False(t, res.TwoFactorRequired)

	claims, err := e.tokens.VerifyAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "alice@x.com", claims.Email)

	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password2!"})
	assert.True(t, errors.Is(err, apperror.ErrBadRequest))
	assert.Equal(t, "Wrong Email or Password", messageOf(t, err))
}

func TestSignUpRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, "Alice")

	_, err := e.authSvc.SignUp(ctx, signUpRequest("Alice", "alice@x.com"))
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	appErr, _ := apperror.As(err)
	assert.Equal(t, "alice@x.com", appErr.Context["invalidData"])

	req := signUpRequest("Bob", "bob@x.com")
	req.ConfirmPassword = "Other1!!"
	_, err = e.authSvc.SignUp(ctx, req)
	assert.Equal(t, "Password and confirm password do not match", messageOf(t, err))
}

func TestConfirmEmailFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "nobody@x.com", OTP: "12345"})
	assert.Equal(t, "User Not Found or Email Already Verified", messageOf(t, err))

	created, err := e.authSvc.SignUp(ctx, signUpRequest("Alice", "alice@x.com"))
	require.NoError(t, err)

	for range 2 {
		_, err = e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "alice@x.com", OTP: "zzzzz"})
		assert.Equal(t, string(otp.ReasonInvalid), messageOf(t, err))
	}
	_, err = e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "alice@x.com", OTP: "zzzzz"})
	assert.Equal(t, string(otp.ReasonBanned), messageOf(t, err))

	// The ban is persisted, so even the right code is refused now.
	code := e.notifier.lastCode(t, "alice@x.com", mailer.KindVerify)
	_, err = e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: "alice@x.com", OTP: code})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, string(otp.ReasonBanned), appErr.Message)
	assert.Positive(t, appErr.Context["remainingSeconds"])
	assert.False(t, e.reload(t, created.ID).IsEmailVerified)
}

func TestLoginUnverifiedUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	created, err := e.authSvc.SignUp(ctx, signUpRequest("Alice", "alice@x.com"))
	require.NoError(t, err)

	// The signup code is still live, so no second one goes out.
	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	assert.Equal(t, "An OTP for verify has already been sent. Please check your email.", messageOf(t, err))

	stored := e.reload(t, created.ID)
	expired := time.Now().Add(-time.Minute)
	stored.OTPs[0].ExpireAt = &expired
	require.NoError(t, e.users.Update(ctx, stored))

	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	assert.Equal(t, "Email not verified. A new OTP has been sent to your email.", messageOf(t, err))
	assert.Len(t, e.notifier.kinds("alice@x.com"), 2)

	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "ghost@x.com", Password: "Password1!"})
	assert.Equal(t, "User Not Found", messageOf(t, err))
}

func TestTwoFactorLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")

	require.NoError(t, e.authSvc.EnableTwoFactor(ctx, alice.ID))
	err := e.authSvc.EnableTwoFactor(ctx, alice.ID)
	assert.Equal(t, "Invalid User ID", messageOf(t, err))

	res, err := e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.Nil(t, res.Tokens)

	code := e.notifier.lastCode(t, "alice@x.com", mailer.KindTwoFactorAuth)
	_, err = e.authSvc.LoginWith2FA(ctx, &LoginWith2FARequest{Email: "alice@x.com", Password: "Password1!", OTP: "zzzzz"})
	assert.Equal(t, string(otp.ReasonInvalid), messageOf(t, err))

	pair, err := e.authSvc.LoginWith2FA(ctx, &LoginWith2FARequest{Email: "alice@x.com", Password: "Password1!", OTP: code})
	require.NoError(t, err)
	_, err = e.auth.Access(ctx, pair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, -1, e.reload(t, alice.ID).FindOTP(models.OTPTwoFactorAuth))

	require.NoError(t, e.authSvc.DisableTwoFactor(ctx, alice.ID))
	err = e.authSvc.DisableTwoFactor(ctx, alice.ID)
	assert.Equal(t, "Two-factor authentication is not enabled or Invalid User ID", messageOf(t, err))

	_, err = e.authSvc.LoginWith2FA(ctx, &LoginWith2FARequest{Email: "alice@x.com", Password: "Password1!", OTP: code})
	assert.Equal(t, "Two-factor authentication is not enabled", messageOf(t, err))

	kinds := e.notifier.kinds("alice@x.com")
	assert.Contains(t, kinds, mailer.KindTwoFactorEnabled)
	assert.Contains(t, kinds, mailer.KindTwoFactorDisabled)
}

func TestRefreshRevokesPreviousAccessToken(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, "Alice")

	res, err := e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	require.NoError(t, err)
	first := res.Tokens

	p, err := e.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	second, err := e.authSvc.Refresh(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, second.RefreshToken, "refresh token is never rotated")

	_, err = e.auth.Access(ctx, first.AccessToken)
	assert.Equal(t, "token is blacklisted, please login again", messageOf(t, err))
	_, err = e.auth.Access(ctx, second.AccessToken)
	require.NoError(t, err)

	// A second refresh revokes the token the first refresh minted.
	p, err = e.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	third, err := e.authSvc.Refresh(ctx, p)
	require.NoError(t, err)

	_, err = e.auth.Access(ctx, second.AccessToken)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
	_, err = e.auth.Access(ctx, third.AccessToken)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, "Alice")
	p := e.login(t, "alice@x.com")

	require.NoError(t, e.authSvc.Logout(ctx, p))

	res, err := e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Password1!"})
	require.NoError(t, err)
	_, err = e.auth.Access(ctx, res.Tokens.AccessToken)
	assert.NoError(t, err, "logout revokes only the current token")
}

func TestPasswordResetAndChange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.verifiedUser(t, "Alice")

	err := e.authSvc.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "ghost@x.com"})
	assert.Equal(t, "User with this email does not exist or is registered with a social provider", messageOf(t, err))

	require.NoError(t, e.authSvc.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "alice@x.com"}))
	code := e.notifier.lastCode(t, "alice@x.com", mailer.KindReset)

	err = e.authSvc.ResetPassword(ctx, &ResetPasswordRequest{Email: "alice@x.com", OTP: code, Password: "NewPass1!", ConfirmPassword: "NewPass2!"})
	assert.Equal(t, "Passwords do not match", messageOf(t, err))

	require.NoError(t, e.authSvc.ResetPassword(ctx, &ResetPasswordRequest{Email: "alice@x.com", OTP: code, Password: "NewPass1!", ConfirmPassword: "NewPass1!"}))
	assert.Contains(t, e.notifier.kinds("alice@x.com"), mailer.KindPasswordUpdated)

	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "NewPass1!"})
	require.NoError(t, err)

	err = e.authSvc.ChangePassword(ctx, alice.ID, &ChangePasswordRequest{CurrentPassword: "Password1!", Password: "Other1!!", ConfirmPassword: "Other1!!"})
	assert.Equal(t, "Current Password is incorrect", messageOf(t, err))

	require.NoError(t, e.authSvc.ChangePassword(ctx, alice.ID, &ChangePasswordRequest{CurrentPassword: "NewPass1!", Password: "Other1!!", ConfirmPassword: "Other1!!"}))
	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "alice@x.com", Password: "Other1!!"})
	assert.NoError(t, err)
}

func TestGoogleSignIn(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.authSvc.Google(ctx, &GoogleRequest{})
	assert.Equal(t, "ID Token is required", messageOf(t, err))

	e.google.identity = &GoogleIdentity{Subject: "g-1", Email: "gina@x.com", EmailVerified: false}
	_, err = e.authSvc.Google(ctx, &GoogleRequest{IDToken: "tok"})
	assert.Equal(t, "Email Not Verified", messageOf(t, err))

	e.google.identity = &GoogleIdentity{Subject: "g-1", Email: "gina@x.com", EmailVerified: true, FamilyName: "Green"}
	first, err := e.authSvc.Google(ctx, &GoogleRequest{IDToken: "tok"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "User", first.User.FirstName)
	assert.Equal(t, models.ProviderGoogle, first.User.Provider)
	assert.True(t, first.User.IsEmailVerified)
	require.NotNil(t, first.Tokens)

	e.google.identity = &GoogleIdentity{Subject: "g-1", Email: "gina@x.com", EmailVerified: true, GivenName: "Gina", FamilyName: "Green"}
	second, err := e.authSvc.Google(ctx, &GoogleRequest{IDToken: "tok"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Gina", e.reload(t, first.User.ID).FirstName)

	_, err = e.authSvc.Login(ctx, &LoginRequest{Email: "gina@x.com", Password: "Password1!"})
	assert.Equal(t, "Wrong Email or Password", messageOf(t, err))

	err = e.authSvc.ForgotPassword(ctx, &ForgotPasswordRequest{Email: "gina@x.com"})
	assert.True(t, errors.Is(err, apperror.ErrBadRequest))

	err = e.profileSvc.ResendResetOTP(ctx, &ResendResetRequest{Email: "gina@x.com"})
	assert.True(t, errors.Is(err, apperror.ErrBadRequest))
	assert.Equal(t, -1, e.reload(t, first.User.ID).FindOTP(models.OTPReset))
}

func TestIsAdult(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsAdult(time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsAdult(time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC), now))

	dob, err := ParseDOB("1990-05-01")
	require.NoError(t, err)
	assert.Equal(t, 1990, dob.Year())
	_, err = ParseDOB("05/01/1990")
	assert.Error(t, err)
}
