package api

import (
	"errors"
	"time"
)

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Pseudo          string `json:"pseudo"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Pseudo   string `json:"pseudo"`
	Password string `json:"password"`
}

// Validate checks required fields
func (r LoginRequest) Validate() error {
	if r.Pseudo == "" || r.Password == "" {
		return errors.New("pseudo and password are required")
	}
	return nil
}

// GoogleLoginRequest - вход по Google ID token
type GoogleLoginRequest struct {
	Credential string `json:"credential"`
}

// Validate checks that the credential is present
func (r GoogleLoginRequest) Validate() error {
	if r.Credential == "" {
		return errors.New("credential is required")
	}
	return nil
}

// AuthResponse - токен сессии и профиль
type AuthResponse struct {
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse - ответ /health
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database"`
}
