package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PseudoPattern определяет допустимый формат pseudo
// Латинские буквы, цифры, '_', '.', '-'. Длина: 3-32 символа
var PseudoPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,32}$`)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

const (
	// MinPseudoLen минимальная длина pseudo
	MinPseudoLen = 3
	// MaxPseudoLen максимальная длина pseudo
	MaxPseudoLen = 32
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordLen - bcrypt использует только первые 72 байта
	MaxPasswordLen = 72
	// MaxNameLen ограничивает имена хранилищ и элементов
	MaxNameLen = 256
)

// ValidatePseudo проверяет, что pseudo соответствует требованиям
func ValidatePseudo(pseudo string) error {
	if pseudo == "" {
		return fmt.Errorf("pseudo cannot be empty")
	}

	if len(pseudo) < MinPseudoLen {
		return fmt.Errorf("pseudo must be at least %d characters long", MinPseudoLen)
	}

	if len(pseudo) > MaxPseudoLen {
		return fmt.Errorf("pseudo must not exceed %d characters", MaxPseudoLen)
	}

	if !PseudoPattern.MatchString(pseudo) {
		return fmt.Errorf("pseudo can only contain letters, numbers, '_', '.' and '-'")
	}

	return nil
}

// SanitizePseudo строит допустимый pseudo из display name внешнего провайдера.
// Возвращает пустую строку, если подходящих символов слишком мало.
func SanitizePseudo(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
		if b.Len() == MaxPseudoLen {
			break
		}
	}
	out := b.String()
	if len(out) < MinPseudoLen {
		return ""
	}
	return out
}

// ValidateEmail проверяет формат email
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}

// ValidatePIN - PIN состоит из 4-6 цифр
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("PIN must be 4 to 6 digits")
	}
	return nil
}

// ValidateID проверяет, что идентификатор - UUID
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid identifier %q", id)
	}
	return nil
}

// ValidateName проверяет имя хранилища или элемента
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}
	return nil
}
