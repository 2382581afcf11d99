package models

import "time"

// User представляет учетную запись пользователя
type User struct {
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ID           string    `json:"id"`
	Pseudo       string    `json:"pseudo"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt, пусто если пароль не задан
	PINHash      string    `json:"-"` // bcrypt, пусто если PIN не задан
	GoogleID     string    `json:"googleId,omitempty"`
	HasPassword  bool      `json:"hasPassword"`
	HasPin       bool      `json:"hasPin"`
}

// CanAuthenticate reports whether the account still has a primary factor.
func (u *User) CanAuthenticate() bool {
	return u.HasPassword || u.GoogleID != ""
}

// PublicProfile - данные пользователя, видимые другим участникам
type PublicProfile struct {
	ID     string `json:"id"`
	Pseudo string `json:"pseudo"`
}
