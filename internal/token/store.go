package token

import (
	"context"
	"time"
)

// Revocation blacklists token ids until ExpiresAt, after which the tokens
// would fail verification anyway.
type Revocation struct {
	AccessTokenID  string
	RefreshTokenID string
	ExpiresAt      time.Time
}

type RevocationStore interface {
	Revoke(ctx context.Context, r Revocation) error
	IsAccessRevoked(ctx context.Context, id string) (bool, error)
	IsRefreshRevoked(ctx context.Context, id string) (bool, error)
}

// Session binds a refresh token to the access token most recently minted
// from it, so refresh can revoke exactly that access token.
type Session struct {
	RefreshTokenID   string
	AccessTokenID    string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type SessionStore interface {
	Bind(ctx context.Context, s Session) error
	// Current returns nil, nil when no session is bound.
	Current(ctx context.Context, refreshTokenID string) (*Session, error)
}
