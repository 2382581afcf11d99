package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthStorage хранит сессии CLI между запусками, по одной на сервер.
// Токен лежит как есть: файл базы создается с правами 0600.
type AuthStorage interface {
	// SaveAuth replaces the session stored for auth.ServerURL
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth returns ErrAuthNotFound if nobody is logged in to serverURL
	GetAuth(ctx context.Context, serverURL string) (*AuthData, error)

	// DeleteAuth removes the session of serverURL (logout)
	DeleteAuth(ctx context.Context, serverURL string) error

	// PruneExpired drops sessions whose token has expired, on any server
	PruneExpired(ctx context.Context) (int, error)
}

// AuthData - сохраненная сессия
type AuthData struct {
	UserID    string `json:"user_id"`
	Pseudo    string `json:"pseudo"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ServerURL string `json:"server_url"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expired reports whether the token has expired at now
func (a *AuthData) Expired(now time.Time) bool {
	return !now.Before(time.Unix(a.ExpiresAt, 0))
}

// SessionKey приводит адрес сервера к ключу сессии:
// схема и хост в нижнем регистре, без завершающего "/", без query.
// "HTTP://Vault.example.com/" и "http://vault.example.com" дают один ключ.
func SessionKey(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q", serverURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/"), nil
}
