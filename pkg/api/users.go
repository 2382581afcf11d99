package api

import (
	"errors"
	"time"
)

// UserResponse - профиль текущего пользователя
type UserResponse struct {
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	Pseudo      string    `json:"pseudo"`
	Email       string    `json:"email"`
	GoogleID    string    `json:"googleId,omitempty"`
	HasPassword bool      `json:"hasPassword"`
	HasPin      bool      `json:"hasPin"`
}

// PublicProfileResponse - то, что видят другие пользователи
type PublicProfileResponse struct {
	ID     string `json:"id"`
	Pseudo string `json:"pseudo"`
}

// UpdateProfileRequest - nil поля не меняются
type UpdateProfileRequest struct {
	Email           *string `json:"email,omitempty"`
	Pseudo          *string `json:"pseudo,omitempty"`
	CurrentPassword string  `json:"currentPassword"`
}

// Validate requires at least one change
func (r UpdateProfileRequest) Validate() error {
	if r.Email == nil && r.Pseudo == nil {
		return errors.New("nothing to update")
	}
	return nil
}

// ChangePasswordRequest - смена или первая установка пароля
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SetPINRequest - установка PIN
type SetPINRequest struct {
	PIN      string `json:"pin"`
	Password string `json:"password"`
}

// VerifyPINRequest - проверка PIN
type VerifyPINRequest struct {
	PIN string `json:"pin"`
}

// VerifyPasswordRequest - проверка пароля, также тело DELETE /users/me
type VerifyPasswordRequest struct {
	Password string `json:"password"`
}

// VerifyResponse - результат проверки секрета
type VerifyResponse struct {
	Valid bool `json:"valid"`
}
