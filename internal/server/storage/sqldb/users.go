package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/storage"
)

const userColumns = `id, pseudo, email, password_hash, pin_hash, has_password, has_pin, google_id, created_at, updated_at`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.dialect.q(query),
		user.ID,
		user.Pseudo,
		user.Email,
		nullString(user.PasswordHash),
		nullString(user.PINHash),
		user.HasPassword,
		user.HasPin,
		nullString(user.GoogleID),
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		if dup := duplicateUserField(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUserBy(ctx, "id", userID)
}

// GetUserByPseudo retrieves user by pseudo
func (s *Storage) GetUserByPseudo(ctx context.Context, pseudo string) (*models.User, error) {
	return s.getUserBy(ctx, "pseudo", pseudo)
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "email", email)
}

// GetUserByGoogleID retrieves user by Google subject
func (s *Storage) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.getUserBy(ctx, "google_id", googleID)
}

// getUserBy column is always one of the constants above, never user input
func (s *Storage) getUserBy(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, s.dialect.q(query), value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateUser updates user information
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET pseudo = ?, email = ?, password_hash = ?, pin_hash = ?,
		    has_password = ?, has_pin = ?, google_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query),
		user.Pseudo,
		user.Email,
		nullString(user.PasswordHash),
		nullString(user.PINHash),
		user.HasPassword,
		user.HasPin,
		nullString(user.GoogleID),
		user.UpdatedAt.UTC(),
		user.ID,
	)
	if err != nil {
		if dup := duplicateUserField(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectOneRow(result, storage.ErrUserNotFound)
}

// DeleteUser deletes user by ID. Owned vaults and memberships go with it.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.q(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectOneRow(result, storage.ErrUserNotFound)
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var passwordHash, pinHash, googleID sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Pseudo,
		&user.Email,
		&passwordHash,
		&pinHash,
		&user.HasPassword,
		&user.HasPin,
		&googleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash.String
	user.PINHash = pinHash.String
	user.GoogleID = googleID.String

	return user, nil
}

func duplicateUserField(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}

	switch {
	case strings.Contains(constraint, "google_id"):
		return &storage.DuplicateError{Field: "googleId"}
	case strings.Contains(constraint, "email"):
		return &storage.DuplicateError{Field: "email"}
	case strings.Contains(constraint, "pseudo"):
		return &storage.DuplicateError{Field: "pseudo"}
	default:
		return &storage.DuplicateError{Field: "user"}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
