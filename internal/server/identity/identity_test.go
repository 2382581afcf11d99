package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"github.com/iudanet/supwarden/internal/common"
)

func newTestVerifier(fn validateFunc) *GoogleVerifier {
	return &GoogleVerifier{validate: fn, clientID: "client-id"}
}

func TestNewGoogleVerifier(t *testing.T) {
	_, err := NewGoogleVerifier("")
	assert.Error(t, err)

	v, err := NewGoogleVerifier("client-id")
	require.NoError(t, err)
	assert.NotNil(t, v.validate)
}

func TestGoogleVerifier_Verify(t *testing.T) {
	tests := []struct {
		validate  validateFunc
		want      *Identity
		wantError error
		name      string
		assertion string
	}{
		{
			name:      "valid token",
			assertion: "token",
			validate: func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
				if token != "token" || audience != "client-id" {
					return nil, errors.New("unexpected arguments")
				}
				return &idtoken.Payload{
					Subject: "sub-1",
					Claims: map[string]interface{}{
						"email":          "alice@example.com",
						"name":           "Alice Liddell",
						"email_verified": true,
					},
				}, nil
			},
			want: &Identity{Subject: "sub-1", Email: "alice@example.com", Name: "Alice Liddell", EmailVerified: true},
		},
		{
			name:      "string email_verified",
			assertion: "token",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return &idtoken.Payload{
					Subject: "sub-2",
					Claims:  map[string]interface{}{"email": "bob@example.com", "email_verified": "true"},
				}, nil
			},
			want: &Identity{Subject: "sub-2", Email: "bob@example.com", EmailVerified: true},
		},
		{
			name:      "empty assertion",
			assertion: "  ",
			wantError: common.ErrInvalidAssertion,
		},
		{
			name:      "rejected by provider",
			assertion: "token",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return nil, errors.New("idtoken: audience provided does not match aud claim")
			},
			wantError: common.ErrInvalidAssertion,
		},
		{
			name:      "provider timeout",
			assertion: "token",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return nil, context.DeadlineExceeded
			},
			wantError: common.ErrUnavailable,
		},
		{
			name:      "missing email",
			assertion: "token",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return &idtoken.Payload{Subject: "sub-3", Claims: map[string]interface{}{}}, nil
			},
			wantError: common.ErrInvalidAssertion,
		},
		{
			name:      "missing subject",
			assertion: "token",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return &idtoken.Payload{Claims: map[string]interface{}{"email": "x@example.com"}}, nil
			},
			wantError: common.ErrInvalidAssertion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(tt.validate)
			got, err := v.Verify(context.Background(), tt.assertion)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
