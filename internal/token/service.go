// Package token issues and verifies the access/refresh JWT pair and defines
// the stores that revoke them.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"social-service/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Subject is the identity embedded in every token.
type Subject struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// AccessTokenID is set on refresh tokens to the access token minted with them.
	AccessTokenID string `json:"ati,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Subject {
	return Subject{UserID: c.UserID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}
}

// ExpiresAtTime returns the expiry, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessTokenID    string
	RefreshTokenID   string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewService(cfg config.JWTConfig) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessExpiry,
		refreshTTL:    cfg.RefreshExpiry,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// IssueTokenPair signs an access and a refresh token with distinct ids and secrets.
func (s *Service) IssueTokenPair(sub Subject) (*Pair, error) {
	access, err := s.IssueAccessToken(sub)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(sub, s.refreshSecret, s.refreshTTL, access.ID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessTokenID:    access.ID,
		RefreshTokenID:   refresh.ID,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *Service) IssueAccessToken(sub Subject) (*Issued, error) {
	return s.sign(sub, s.accessSecret, s.accessTTL, "")
}

func (s *Service) sign(sub Subject, secret []byte, ttl time.Duration, accessID string) (*Issued, error) {
	now := s.now()
	id := uuid.NewString()
	exp := now.Add(ttl)

	claims := &Claims{
		UserID:        sub.UserID,
		Email:         sub.Email,
		FirstName:     sub.FirstName,
		LastName:      sub.LastName,
		AccessTokenID: accessID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   sub.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Issued{Token: signed, ID: id, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry of raw against secret.
func (s *Service) Verify(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.Verify(raw, s.accessSecret)
}

func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return s.Verify(raw, s.refreshSecret)
}

func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}
