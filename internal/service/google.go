package service

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the verified payload of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// IDTokenVerifier validates tokens against Google's published keys for one
// OAuth client id.
type IDTokenVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewIDTokenVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create google token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (*GoogleIdentity, error) {
	payload, err := v.validator.Validate(ctx, raw, v.clientID)
	if err != nil {
		return nil, err
	}
	id := &GoogleIdentity{Subject: payload.Subject}
	id.Email, _ = payload.Claims["email"].(string)
	id.GivenName, _ = payload.Claims["given_name"].(string)
	id.FamilyName, _ = payload.Claims["family_name"].(string)

	// Google has sent email_verified both as a bool and as a string.
	switch ev := payload.Claims["email_verified"].(type) {
	case bool:
		id.EmailVerified = ev
	case string:
		id.EmailVerified, _ = strconv.ParseBool(ev)
	}
	return id, nil
}
