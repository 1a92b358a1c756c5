package service

import (
	"context"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"

	"github.com/srm-ap/portal-api/internal/apperror"
)

// GoogleProfile is the identity extracted from a verified Google ID token.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier validates Google ID tokens issued to the portal frontend.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleProfile, error)
}

type googleVerifier struct {
	clientID string
}

// NewGoogleVerifier builds a verifier bound to one OAuth client ID.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID}
}

func (v *googleVerifier) Verify(_ context.Context, idToken string) (GoogleProfile, error) {
	verifier := googleAuthIDTokenVerifier.Verifier{}
	if err := verifier.VerifyIDToken(idToken, []string{v.clientID}); err != nil {
		return GoogleProfile{}, apperror.TokenInvalid
	}

	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return GoogleProfile{}, apperror.TokenInvalid
	}

	return GoogleProfile{
		Subject: claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
