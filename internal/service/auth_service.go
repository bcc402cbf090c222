package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/audit"
	"social-service/internal/mailer"
	"social-service/internal/models"
	"social-service/internal/otp"
	"social-service/internal/repository"
	"social-service/internal/search"
	"social-service/internal/token"
	"social-service/internal/util"
)

type SignUpRequest struct {
	FirstName       string `json:"firstName" validate:"required,min=3"`
	LastName        string `json:"lastName" validate:"required,min=3"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	DOB             string `json:"DOB" validate:"required,adult"`
	Gender          string `json:"gender" validate:"required,oneof=male female other"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,min=10,max=15"`
}

type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=5"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginWith2FARequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=5"`
}

type GoogleRequest struct {
	IDToken string `json:"idToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	OTP             string `json:"otp" validate:"required,len=5"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// LoginResult carries tokens, or TwoFactorRequired when a code was emailed instead.
type LoginResult struct {
	Tokens            *TokenPair
	TwoFactorRequired bool
}

type GoogleResult struct {
	User    *models.User
	Tokens  *TokenPair
	Created bool
}

// AuthService runs the account lifecycle: sign-up, verification, login with
// optional second factor, password flows, Google sign-in and token refresh.
type AuthService struct {
	users       repository.UserRepository
	hasher      PasswordHasher
	cipher      FieldCipher
	otp         *otp.Engine
	tokens      *token.Service
	revocations token.RevocationStore
	sessions    token.SessionStore
	notifier    otp.Notifier
	google      GoogleVerifier
	recorder    audit.Recorder
	index       search.UserIndex
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(d Deps) *AuthService {
	return &AuthService{
		users:       d.Users,
		hasher:      d.Hasher,
		cipher:      d.Cipher,
		otp:         d.OTP,
		tokens:      d.Tokens,
		revocations: d.Revocations,
		sessions:    d.Sessions,
		notifier:    d.Notifier,
		google:      d.Google,
		recorder:    d.Audit,
		index:       d.Search,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// ParseDOB accepts a calendar date or an RFC 3339 timestamp.
func ParseDOB(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// IsAdult reports whether someone born on dob is at least 18 at now.
func IsAdult(dob, now time.Time) bool {
	return !dob.AddDate(18, 0, 0).After(now)
}

func (s *AuthService) SignUp(ctx context.Context, req *SignUpRequest) (*models.User, error) {
	email := strings.TrimSpace(req.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("Email Already Exists", apperror.Context{"invalidData": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperror.BadRequest("Password and confirm password do not match")
	}

	dob, err := ParseDOB(req.DOB)
	if err != nil {
		return nil, apperror.BadRequest("Invalid date of birth")
	}
	phone, err := s.cipher.EncryptField(ctx, req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypt phone: %w", err)
	}
	passwordHash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, rec, err := s.otp.Generate(models.OTPVerify)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          email,
		Password:       passwordHash,
		DOB:            &dob,
		Role:           models.RoleUser,
		Provider:       models.ProviderLocal,
		Gender:         models.Gender(req.Gender),
		PhoneEncrypted: phone,
		OTPs:           []models.OTPRecord{rec},
		BlockList:      []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Email Already Exists", apperror.Context{"invalidData": email})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindVerify, user.FullName(), code)
	indexUser(ctx, s.index, s.logger, user)
	record(ctx, s.recorder, models.EventSignup, user.ID, "")

	s.logger.Info("User registered", util.String("user_id", user.ID))

	user.PhoneNumber = req.PhoneNumber
	return user, nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, req *ConfirmEmailRequest) (*models.User, error) {
	if req.Email == "" || req.OTP == "" {
		return nil, apperror.BadRequest("Email and OTP are required")
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil || user.IsEmailVerified {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.BadRequest("User Not Found or Email Already Verified")
	}

	res := s.otp.Check(user, models.OTPVerify, req.OTP)
	if !res.Valid {
		return nil, otpFailure(ctx, s.users, s.recorder, user, res)
	}

	user.IsEmailVerified = true
	user.RemoveOTPs(models.OTPVerify)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	record(ctx, s.recorder, models.EventEmailConfirmed, user.ID, "")
	return user, nil
}

// checkCredentials loads the user by email and verifies the password.
func (s *AuthService) checkCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, missing(err, "User Not Found")
	}
	ok, err := s.hasher.VerifyPassword(password, user.Password)
	if err != nil {
		s.logger.Warn("Stored password hash could not be checked", util.String("user_id", user.ID), util.ErrorField(err))
	}
	if !ok {
		ev := audit.NewEvent(ctx, models.EventLoginFailed, user.ID)
		ev.Details = "wrong password"
		s.recorder.Record(ctx, ev)
		return nil, apperror.BadRequest("Wrong Email or Password")
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperror.BadRequest("Email and Password are required")
	}
	user, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	if !user.IsEmailVerified {
		if err := s.otp.IssueOrReject(ctx, user, models.OTPVerify, s.users.Update); err != nil {
			return nil, err
		}
		return nil, apperror.BadRequest("Email not verified. A new OTP has been sent to your email.")
	}

	if user.Deactivation.Deactivated {
		user.Deactivation = models.Deactivation{}
		user.UpdatedAt = s.now().UTC()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("reactivate user: %w", err)
		}
		s.logger.Info("Account reactivated on login", util.String("user_id", user.ID))
	}

	if !user.EnableTwoFactorAuth {
		pair, err := s.startSession(ctx, user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Tokens: pair}, nil
	}

	if err := s.otp.IssueOrReject(ctx, user, models.OTPTwoFactorAuth, s.users.Update); err != nil {
		return nil, err
	}
	record(ctx, s.recorder, models.EventLoginChallenge, user.ID, "")
	return &LoginResult{TwoFactorRequired: true}, nil
}

func (s *AuthService) LoginWith2FA(ctx context.Context, req *LoginWith2FARequest) (*TokenPair, error) {
	if req.Email == "" || req.OTP == "" || req.Password == "" {
		return nil, apperror.BadRequest("Email, Password and OTP are required")
	}
	user, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !user.EnableTwoFactorAuth {
		return nil, apperror.BadRequest("Two-factor authentication is not enabled")
	}

	res := s.otp.Check(user, models.OTPTwoFactorAuth, req.OTP)
	if !res.Valid {
		return nil, otpFailure(ctx, s.users, s.recorder, user, res)
	}

	user.RemoveOTPs(models.OTPTwoFactorAuth)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.startSession(ctx, user)
}

// startSession issues a token pair and binds the refresh token to its access token.
func (s *AuthService) startSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	pair, err := s.tokens.IssueTokenPair(subjectOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	err = s.sessions.Bind(ctx, token.Session{
		RefreshTokenID:   pair.RefreshTokenID,
		AccessTokenID:    pair.AccessTokenID,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("bind session: %w", err)
	}
	record(ctx, s.recorder, models.EventLogin, user.ID, pair.AccessTokenID)
	return &TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Google signs in with a Google ID token, creating the account on first use.
// Accounts created here get a random password hash nobody knows.
func (s *AuthService) Google(ctx context.Context, req *GoogleRequest) (*GoogleResult, error) {
	if req.IDToken == "" {
		return nil, apperror.BadRequest("ID Token is required")
	}
	if s.google == nil {
		return nil, apperror.BadRequest("Google sign-in is not configured")
	}
	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		s.logger.Warn("Google token rejected", util.ErrorField(err))
		return nil, apperror.BadRequest("Invalid Google ID token")
	}
	if identity == nil || identity.Subject == "" || identity.Email == "" {
		return nil, apperror.BadRequest("Invalid Token - No Payload")
	}
	if !identity.EmailVerified {
		return nil, apperror.BadRequest("Email Not Verified")
	}

	firstName := identity.GivenName
	if firstName == "" {
		firstName = "User"
	}
	now := s.now().UTC()

	user, err := s.users.FindByGoogleIdentity(ctx, identity.Subject, identity.Email)
	created := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		unusable, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user = &models.User{
			ID:              uuid.NewString(),
			FirstName:       firstName,
			LastName:        identity.FamilyName,
			Email:           identity.Email,
			IsEmailVerified: true,
			Password:        unusable,
			Role:            models.RoleUser,
			Provider:        models.ProviderGoogle,
			GoogleID:        identity.Subject,
			BlockList:       []string{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, apperror.Conflict("Email Already Exists", apperror.Context{"invalidData": identity.Email})
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
		created = true
		s.notifier.Notify(ctx, user.Email, mailer.KindWelcome, user.FullName(), "")
		record(ctx, s.recorder, models.EventSignup, user.ID, "")
	case err != nil:
		return nil, fmt.Errorf("lookup google user: %w", err)
	default:
		user.Email = identity.Email
		user.FirstName = firstName
		user.LastName = identity.FamilyName
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("sync google user: %w", err)
		}
	}

	indexUser(ctx, s.index, s.logger, user)

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &GoogleResult{User: user, Tokens: pair, Created: created}, nil
}

// Logout revokes the caller's access token only.
func (s *AuthService) Logout(ctx context.Context, p *token.Principal) error {
	err := s.revocations.Revoke(ctx, token.Revocation{
		AccessTokenID: p.TokenID(),
		ExpiresAt:     p.Claims.ExpiresAtTime(),
	})
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	record(ctx, s.recorder, models.EventLogout, p.User.ID, p.TokenID())
	return nil
}

func (s *AuthService) findLocalUser(ctx context.Context, email string) (*models.User, error) {
	const msg = "User with this email does not exist or is registered with a social provider"
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, missing(err, msg)
	}
	if user.Provider != models.ProviderLocal && user.Provider != "" {
		return nil, apperror.BadRequest(msg)
	}
	return user, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) error {
	if req.Email == "" {
		return apperror.BadRequest("Email is required")
	}
	user, err := s.findLocalUser(ctx, req.Email)
	if err != nil {
		return err
	}
	return s.otp.IssueOrReject(ctx, user, models.OTPReset, s.users.Update)
}

func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if req.Email == "" || req.OTP == "" || req.Password == "" || req.ConfirmPassword == "" {
		return apperror.BadRequest("Email, OTP, Password and Confirm Password are required")
	}
	user, err := s.findLocalUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return apperror.BadRequest("Passwords do not match")
	}

	res := s.otp.Check(user, models.OTPReset, req.OTP)
	if !res.Valid {
		return otpFailure(ctx, s.users, s.recorder, user, res)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = hash
	user.RemoveOTPs(models.OTPReset)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindPasswordUpdated, user.FullName(), "")
	record(ctx, s.recorder, models.EventPasswordReset, user.ID, "")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	if req.Password != req.ConfirmPassword {
		return apperror.BadRequest("Passwords do not match")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return missing(err, "Invalid User ID")
	}
	ok, err := s.hasher.VerifyPassword(req.CurrentPassword, user.Password)
	if err != nil || !ok {
		return apperror.BadRequest("Current Password is incorrect")
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindPasswordUpdated, user.FullName(), "")
	record(ctx, s.recorder, models.EventPasswordChanged, user.ID, "")
	return nil
}

func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user.EnableTwoFactorAuth {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return apperror.BadRequest("Invalid User ID")
	}

	user.EnableTwoFactorAuth = true
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindTwoFactorEnabled, user.FullName(), "")
	record(ctx, s.recorder, models.EventTwoFactorEnabled, user.ID, "")
	return nil
}

// DisableTwoFactor also drops any pending second-factor code.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || !user.EnableTwoFactorAuth {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return apperror.BadRequest("Two-factor authentication is not enabled or Invalid User ID")
	}

	user.EnableTwoFactorAuth = false
	user.RemoveOTPs(models.OTPTwoFactorAuth)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindTwoFactorDisabled, user.FullName(), "")
	record(ctx, s.recorder, models.EventTwoFactorDisabled, user.ID, "")
	return nil
}

// Refresh mints a new access token for an authenticated refresh token and
// revokes the access token previously minted from it. The refresh token
// itself stays valid.
func (s *AuthService) Refresh(ctx context.Context, p *token.Principal) (*TokenPair, error) {
	refreshID := p.TokenID()

	prevID, prevExp := p.Claims.AccessTokenID, p.Claims.IssuedAt
	var prevExpiry time.Time
	if prevExp != nil {
		prevExpiry = prevExp.Add(s.tokens.AccessTTL())
	}
	sess, err := s.sessions.Current(ctx, refreshID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		prevID, prevExpiry = sess.AccessTokenID, sess.AccessExpiresAt
	}

	issued, err := s.tokens.IssueAccessToken(subjectOf(p.User))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	if prevID != "" {
		if prevExpiry.IsZero() {
			prevExpiry = s.now().Add(s.tokens.AccessTTL())
		}
		if err := s.revocations.Revoke(ctx, token.Revocation{AccessTokenID: prevID, ExpiresAt: prevExpiry}); err != nil {
			return nil, fmt.Errorf("revoke previous access token: %w", err)
		}
	}

	err = s.sessions.Bind(ctx, token.Session{
		RefreshTokenID:   refreshID,
		AccessTokenID:    issued.ID,
		AccessExpiresAt:  issued.ExpiresAt,
		RefreshExpiresAt: p.Claims.ExpiresAtTime(),
	})
	if err != nil {
		return nil, fmt.Errorf("bind session: %w", err)
	}

	record(ctx, s.recorder, models.EventTokenRefreshed, p.User.ID, issued.ID)
	return &TokenPair{AccessToken: issued.Token}, nil
}
