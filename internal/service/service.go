// Package service holds the application flows behind the HTTP and chat
// surfaces: authentication, profile and social graph, posts, comments and
// reacts.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/audit"
	"social-service/internal/authz"
	"social-service/internal/encryption"
	"social-service/internal/models"
	"social-service/internal/otp"
	"social-service/internal/repository"
	"social-service/internal/search"
	"social-service/internal/storage"
	"social-service/internal/token"
	"social-service/internal/util"
)

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encoded string) (bool, error)
}

// FieldCipher encrypts personal fields at rest.
type FieldCipher interface {
	EncryptField(ctx context.Context, plaintext string) (*encryption.EncryptedData, error)
	DecryptField(ctx context.Context, data *encryption.EncryptedData) (string, error)
}

// Deps is everything the services need. The factory fills it once at startup.
type Deps struct {
	Users         repository.UserRepository
	Friendships   repository.FriendshipRepository
	Posts         repository.PostRepository
	Comments      repository.CommentRepository
	Reacts        repository.ReactRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository

	Hasher      PasswordHasher
	Cipher      FieldCipher
	OTP         *otp.Engine
	Tokens      *token.Service
	Revocations token.RevocationStore
	Sessions    token.SessionStore
	Notifier    otp.Notifier
	Google      GoogleVerifier
	Audit       audit.Recorder
	Search      search.UserIndex
	Storage     storage.ObjectStore
	Rules       *authz.Rules

	SignedURLExpiry time.Duration
	Logger          *zap.Logger
}

// missing turns a repository miss into a BadRequest with msg and wraps
// anything else.
func missing(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.BadRequest(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func subjectOf(u *models.User) token.Subject {
	return token.Subject{UserID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

// TokenPair is the token shape returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// otpFailure persists the user after a failed verification so attempt
// counts and bans stick, then returns the reason as an error.
func otpFailure(ctx context.Context, users repository.UserRepository, recorder audit.Recorder, user *models.User, res otp.Result) error {
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("persist otp state: %w", err)
	}
	if res.Reason == otp.ReasonBanned && res.RemainingSeconds == 0 {
		ev := audit.NewEvent(ctx, models.EventOTPBanned, user.ID)
		ev.Details = "otp banned after repeated failures"
		recorder.Record(ctx, ev)
	}
	return res.Err()
}

func record(ctx context.Context, recorder audit.Recorder, t models.AuthEventType, userID, tokenID string) {
	ev := audit.NewEvent(ctx, t, userID)
	ev.TokenID = tokenID
	recorder.Record(ctx, ev)
}

func indexUser(ctx context.Context, index search.UserIndex, logger *zap.Logger, user *models.User) {
	if err := index.Index(ctx, user); err != nil {
		logger.Warn("Failed to index user", util.String("user_id", user.ID), util.ErrorField(err))
	}
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
