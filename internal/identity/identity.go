// Package identity verifies ID tokens issued by the external identity
// provider used for "Sign in with Google".
package identity

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/diagnosis/reservou/internal/apperror"
)

// Identity is what a verified token says about its holder.
type Identity struct {
	UID   string
	Email string
	Name  string
}

type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks signature, audience and expiry. Any failure is reported as
// a BadRequest "invalid token".
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperror.BadRequestCause("invalid token", err)
	}
	return fromClaims(tok.UID, tok.Claims), nil
}

func fromClaims(uid string, claims map[string]interface{}) *Identity {
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &Identity{
		UID:   uid,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  strings.TrimSpace(name),
	}
}

// Disabled rejects every token. It stands in when no identity provider is
// configured.
type Disabled struct{}

func (Disabled) Verify(context.Context, string) (*Identity, error) {
	return nil, apperror.BadRequest("google sign-in is not available")
}
