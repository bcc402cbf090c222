package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/repository"
)

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Principal is the authenticated caller attached to a request or socket.
type Principal struct {
	User   *models.User
	Claims *Claims
}

func (p *Principal) TokenID() string {
	return p.Claims.ID
}

type Authenticator struct {
	tokens      *Service
	revocations RevocationStore
	users       UserFinder
}

func NewAuthenticator(tokens *Service, revocations RevocationStore, users UserFinder) *Authenticator {
	return &Authenticator{tokens: tokens, revocations: revocations, users: users}
}

// BearerToken accepts both "Bearer <token>" and a bare token.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Access authenticates an access token. Every rejection is Unauthorized.
func (a *Authenticator) Access(ctx context.Context, header string) (*Principal, error) {
	raw := BearerToken(header)
	if raw == "" {
		return nil, apperror.Unauthorized("please login first")
	}

	claims, err := a.tokens.VerifyAccess(raw)
	if err != nil {
		return nil, apperror.Unauthorized("invalid token")
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, apperror.Unauthorized("invalid token payload")
	}

	revoked, err := a.revocations.IsAccessRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check access revocation: %w", err)
	}
	if revoked {
		return nil, apperror.Unauthorized("token is blacklisted, please login again")
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthorized("please register first")
		}
		return nil, err
	}

	return &Principal{User: user, Claims: claims}, nil
}

// Refresh authenticates a refresh token. Rejections are BadRequest.
func (a *Authenticator) Refresh(ctx context.Context, header string) (*Principal, error) {
	raw := BearerToken(header)
	if raw == "" {
		return nil, apperror.BadRequest("Insert a refresh token")
	}

	claims, err := a.tokens.VerifyRefresh(raw)
	if err != nil || claims.ID == "" || claims.UserID == "" {
		return nil, apperror.BadRequest("Invalid refresh token")
	}

	revoked, err := a.revocations.IsRefreshRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check refresh revocation: %w", err)
	}
	if revoked {
		return nil, apperror.BadRequest("Refresh token has been revoked")
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.BadRequest("User not found")
		}
		return nil, err
	}

	return &Principal{User: user, Claims: claims}, nil
}
