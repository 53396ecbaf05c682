// Package auth turns bearer credentials into an authenticated identity
package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/rempla/rempla-backend/pkg/jwt"
)

// ErrInvalidCredential is returned for any token that cannot be verified
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the authenticated caller
type Identity struct {
	UserID string
	Role   string
}

// Verifier validates a bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// JWTVerifier verifies HMAC tokens issued by this backend
type JWTVerifier struct {
	manager *jwt.Manager
}

// NewJWTVerifier creates a verifier over a jwt.Manager
func NewJWTVerifier(manager *jwt.Manager) *JWTVerifier {
	return &JWTVerifier{manager: manager}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := v.manager.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return &Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// FirebaseVerifier verifies Firebase ID tokens with the Admin SDK
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Admin SDK.
// An empty credentialsFile falls back to application default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	id := &Identity{UserID: tok.UID}
	if role, ok := tok.Claims["role"].(string); ok {
		id.Role = role
	}
	return id, nil
}

// Chain tries each verifier in order and returns the first identity
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	for _, v := range c {
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return nil, ErrInvalidCredential
}
