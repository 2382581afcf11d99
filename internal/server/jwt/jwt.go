// Package jwt issues and verifies session tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/models"
)

const (
	// DefaultTTL - время жизни сессионного токена
	DefaultTTL = 5 * time.Hour

	issuer = "supwarden"
)

// Claims - снимок состояния пользователя на момент выдачи токена
type Claims struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Pseudo      string `json:"pseudo"`
	GoogleID    string `json:"googleId,omitempty"`
	HasPassword bool   `json:"hasPassword"`
	HasPin      bool   `json:"hasPin"`
	gojwt.RegisteredClaims
}

// Service provides token issuance and verification.
type Service struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service.
// secret must be non-empty; ttl <= 0 falls back to DefaultTTL.
func NewService(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Service{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a new token for user. Returns the token and its expiry.
func (s *Service) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		UserID:      user.ID,
		Email:       user.Email,
		Pseudo:      user.Pseudo,
		GoogleID:    user.GoogleID,
		HasPassword: user.HasPassword,
		HasPin:      user.HasPin,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks signature and expiry.
// Every failure is reported as common.ErrSessionExpired.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims, func(token *gojwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", common.ErrSessionExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrSessionExpired, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token", common.ErrSessionExpired)
	}

	return claims, nil
}
