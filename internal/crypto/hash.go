package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost - bcrypt work factor по умолчанию
const DefaultHashCost = 10

// Hasher хеширует пароли и PIN-коды через bcrypt
type Hasher struct {
	cost int
}

// NewHasher создает Hasher с заданным cost
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash возвращает соленый bcrypt хеш секрета
// Длина секрета проверяется выше по стеку (validation)
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	return string(hashed), nil
}

// Verify сравнивает секрет с хешем за постоянное время.
// Для испорченного хеша возвращает false.
func (h *Hasher) Verify(secret, hashed string) bool {
	if secret == "" || hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}
