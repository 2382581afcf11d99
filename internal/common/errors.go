// Package common holds the error taxonomy shared by services and the HTTP layer.
package common

import (
	"errors"
	"fmt"
)

// Domain errors. Handlers map them to HTTP status codes in one place.
var (
	// ErrUnauthenticated - нет или испорчен credential на защищенном endpoint
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSessionExpired - подпись или срок действия токена не прошли проверку
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden - пользователь аутентифицирован, но политика доступа запрещает операцию
	ErrForbidden = errors.New("forbidden")

	// ErrValidation - некорректный ввод
	ErrValidation = errors.New("validation error")

	// ErrNotFound - запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrDecryption - неверный формат шифротекста или ключ
	ErrDecryption = errors.New("decryption failed")

	// ErrImportFormat - bundle импорта не разбирается
	ErrImportFormat = errors.New("malformed import bundle")

	// ErrConflict - дубликат уникального поля или участника
	ErrConflict = errors.New("conflict")

	// ErrInvalidAssertion - внешний identity provider отклонил assertion
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrPartialFailure - многошаговая операция выполнена не полностью
	ErrPartialFailure = errors.New("partial failure")

	// ErrUnavailable - зависимость не ответила вовремя, запрос можно повторить
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrTooManyRequests - превышен лимит запросов
	ErrTooManyRequests = errors.New("too many requests")
)

// Validationf wraps ErrValidation with a caller-visible message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a caller-visible message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a caller-visible message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
