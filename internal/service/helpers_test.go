package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/audit"
	"social-service/internal/authz"
	"social-service/internal/config"
	"social-service/internal/encryption"
	"social-service/internal/hashing"
	"social-service/internal/mailer"
	"social-service/internal/models"
	"social-service/internal/otp"
	"social-service/internal/repository/memory"
	"social-service/internal/search"
	"social-service/internal/storage"
	"social-service/internal/token"
)

type sentMail struct {
	to   string
	kind mailer.Kind
	otp  string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (c *captureNotifier) Notify(_ context.Context, to string, k mailer.Kind, _ string, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMail{to: to, kind: k, otp: code})
}

// lastCode returns the most recent code mailed to `to` with kind k.
func (c *captureNotifier) lastCode(t *testing.T, to string, k mailer.Kind) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].to == to && c.sent[i].kind == k {
			return c.sent[i].otp
		}
	}
	t.Fatalf("no %s mail sent to %s", k, to)
	return ""
}

func (c *captureNotifier) kinds(to string) []mailer.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []mailer.Kind
	for _, m := range c.sent {
		if m.to == to {
			out = append(out, m.kind)
		}
	}
	return out
}

type stubGoogle struct {
	identity *GoogleIdentity
	err      error
}

func (s stubGoogle) Verify(context.Context, string) (*GoogleIdentity, error) {
	return s.identity, s.err
}

type env struct {
	deps          Deps
	users         *memory.UserRepository
	friendships   *memory.FriendshipRepository
	posts         *memory.PostRepository
	comments      *memory.CommentRepository
	reacts        *memory.ReactRepository
	conversations *memory.ConversationRepository
	messages      *memory.MessageRepository
	revocations   *memory.RevocationStore
	store         *storage.MemoryStore
	notifier      *captureNotifier
	google        *stubGoogle
	tokens        *token.Service
	auth          *token.Authenticator

	authSvc    *AuthService
	profileSvc *ProfileService
	postSvc    *PostService
	commentSvc *CommentService
	reactSvc   *ReactService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hasher := hashing.NewHasher(config.HashingConfig{
		Argon2MemoryCost:  1024,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Pepper:            "test-pepper",
		PepperVersion:     1,
	})
	cipher, err := encryption.NewEncryptionManager(&config.Config{
		Environment: "test",
		Hashing:     config.HashingConfig{Pepper: "test-pepper"},
	}, nil)
	require.NoError(t, err)

	e := &env{
		users:         memory.NewUserRepository(),
		friendships:   memory.NewFriendshipRepository(),
		posts:         memory.NewPostRepository(),
		comments:      memory.NewCommentRepository(),
		reacts:        memory.NewReactRepository(),
		conversations: memory.NewConversationRepository(),
		messages:      memory.NewMessageRepository(),
		revocations:   memory.NewRevocationStore(),
		store:         storage.NewMemoryStore("SocialApp"),
		notifier:      &captureNotifier{},
		google:        &stubGoogle{},
		tokens: token.NewService(config.JWTConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessExpiry:  time.Hour,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "social-service",
		}),
	}
	logger := zap.NewNop()

	e.deps = Deps{
		Users:           e.users,
		Friendships:     e.friendships,
		Posts:           e.posts,
		Comments:        e.comments,
		Reacts:          e.reacts,
		Conversations:   e.conversations,
		Messages:        e.messages,
		Hasher:          hasher,
		Cipher:          cipher,
		OTP:             otp.NewEngine(hasher, e.notifier, config.OTPConfig{ExpireMinutes: 10, MaxAttempts: 3, BanMinutes: 5}, logger),
		Tokens:          e.tokens,
		Revocations:     e.revocations,
		Sessions:        memory.NewSessionStore(),
		Notifier:        e.notifier,
		Google:          e.google,
		Audit:           audit.NewLogRecorder(logger),
		Search:          search.NewStoreUserIndex(e.users),
		Storage:         e.store,
		Rules:           authz.NewRules(e.friendships),
		SignedURLExpiry: time.Hour,
		Logger:          logger,
	}
	e.auth = token.NewAuthenticator(e.tokens, e.revocations, e.users)

	f := NewServiceFactory(e.deps)
	e.authSvc = f.AuthService()
	e.profileSvc = f.ProfileService()
	e.postSvc = f.PostService()
	e.commentSvc = f.CommentService()
	e.reactSvc = f.ReactService()
	return e
}

func signUpRequest(first, email string) *SignUpRequest {
	return &SignUpRequest{
		FirstName:       first,
		LastName:        "Tester",
		Email:           email,
		Password:        "Password1!",
		ConfirmPassword: "Password1!",
		DOB:             "1990-05-01",
		Gender:          "female",
		PhoneNumber:     "5551234567",
	}
}

// verifiedUser signs up and confirms a user, returning the stored record.
func (e *env) verifiedUser(t *testing.T, first string) *models.User {
	t.Helper()
	ctx := context.Background()
	email := strings.ToLower(first) + "@x.com"

	_, err := e.authSvc.SignUp(ctx, signUpRequest(first, email))
	require.NoError(t, err)
	code := e.notifier.lastCode(t, email, mailer.KindVerify)
	u, err := e.authSvc.ConfirmEmail(ctx, &ConfirmEmailRequest{Email: email, OTP: code})
	require.NoError(t, err)
	return u
}

// reload fetches the current stored copy of a user.
func (e *env) reload(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *env) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.profileSvc.SendFriendRequest(ctx, a, b.ID))
	require.NoError(t, e.profileSvc.RespondFriendRequest(ctx, b.ID, &RespondFriendRequest{FriendID: a.ID, Status: models.FriendshipAccepted}))
}

func (e *env) login(t *testing.T, email string) *token.Principal {
	t.Helper()
	ctx := context.Background()
	res, err := e.authSvc.Login(ctx, &LoginRequest{Email: email, Password: "Password1!"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	p, err := e.auth.Access(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	return p
}

func file(name, body string) storage.File {
	return storage.File{Name: name, ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func messageOf(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected an app error, got %v", err)
	return appErr.Message
}
