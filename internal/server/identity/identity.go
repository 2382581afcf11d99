// Package identity verifies assertions issued by an external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/iudanet/supwarden/internal/common"
)

// Identity - проверенные данные из assertion
type Identity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// Verifier validates an identity assertion
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Identity, error)
}

// validateFunc is idtoken.Validate, replaced in tests
type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google ID tokens against the OAuth client id
type GoogleVerifier struct {
	validate validateFunc
	clientID string
}

// NewGoogleVerifier creates a verifier for clientID
func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}

	return &GoogleVerifier{
		validate: idtoken.Validate,
		clientID: clientID,
	}, nil
}

// Verify checks signature, audience and expiry of the ID token.
// Any rejection is ErrInvalidAssertion. Timeouts are ErrUnavailable.
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, fmt.Errorf("%w: empty assertion", common.ErrInvalidAssertion)
	}

	payload, err := v.validate(ctx, assertion, v.clientID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: identity provider: %v", common.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidAssertion, err)
	}

	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidAssertion)
	}

	id := &Identity{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		Name:          claimString(payload.Claims, "name"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
	}

	if id.Email == "" {
		return nil, fmt.Errorf("%w: missing email", common.ErrInvalidAssertion)
	}

	return id, nil
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

// email_verified приходит как bool или как строка "true"
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
