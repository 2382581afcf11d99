// Package auth manages the CLI session: register, login and logout
// against the server and the locally stored bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/supwarden/internal/client/storage"
	"github.com/iudanet/supwarden/internal/validation"
	pkgapi "github.com/iudanet/supwarden/pkg/api"
)

var (
	// ErrNotLoggedIn - локальной сессии нет
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired - токен сессии истек, нужен повторный login
	ErrSessionExpired = errors.New("session expired, please login again")
)

// APIClient - часть HTTP клиента, нужная сервису авторизации
type APIClient interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.AuthResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.AuthResponse, error)
	SetToken(token string)
	BaseURL() string
}

// Service предоставляет функции авторизации
type Service struct {
	apiClient APIClient
	store     storage.AuthStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient APIClient, store storage.AuthStorage) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		now:       time.Now,
	}
}

// Register регистрирует нового пользователя и сохраняет сессию
func (s *Service) Register(ctx context.Context, req pkgapi.RegisterRequest) (*storage.AuthData, error) {
	// Валидация входных данных до похода на сервер
	if err := validation.ValidatePseudo(req.Pseudo); err != nil {
		return nil, fmt.Errorf("invalid pseudo: %w", err)
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}
	if req.Password != req.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match")
	}

	resp, err := s.apiClient.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return s.saveSession(ctx, resp)
}

// Login выполняет аутентификацию пользователя и сохраняет сессию
func (s *Service) Login(ctx context.Context, pseudo, password string) (*storage.AuthData, error) {
	if pseudo == "" || password == "" {
		return nil, fmt.Errorf("pseudo and password are required")
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Pseudo: pseudo, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	return s.saveSession(ctx, resp)
}

// Logout удаляет локальную сессию текущего сервера. Токен не отзывается на сервере, он живет до истечения.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx, s.apiClient.BaseURL()); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.apiClient.SetToken("")
	return nil
}

// Session возвращает сессию сервера, с которым работает HTTP клиент, и передает ему ее токен
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx, s.apiClient.BaseURL())
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if auth.Expired(s.now()) {
		return auth, ErrSessionExpired
	}

	s.apiClient.SetToken(auth.Token)
	return auth, nil
}

func (s *Service) saveSession(ctx context.Context, resp *pkgapi.AuthResponse) (*storage.AuthData, error) {
	auth := &storage.AuthData{
		UserID:    resp.User.ID,
		Pseudo:    resp.User.Pseudo,
		Email:     resp.User.Email,
		Token:     resp.Token,
		ServerURL: s.apiClient.BaseURL(),
		ExpiresAt: resp.ExpiresAt.Unix(),
	}

	// Заодно чистим истекшие сессии других серверов
	if _, err := s.store.PruneExpired(ctx); err != nil {
		return nil, fmt.Errorf("failed to prune sessions: %w", err)
	}
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.apiClient.SetToken(auth.Token)
	return auth, nil
}
