package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/supwarden/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) *models.User {
	userID := uuid.New().String()
	now := time.Now()
	user := &models.User{
		ID:           userID,
		Pseudo:       "user_" + userID[:8],
		Email:        userID[:8] + "@example.com",
		PasswordHash: "hash",
		HasPassword:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, s.CreateUser(ctx, user))
	return user
}

func createTestVault(t *testing.T, ctx context.Context, s *Storage, ownerID string, members ...models.Member) *models.Vault {
	now := time.Now()
	vault := &models.Vault{
		ID:        uuid.New().String(),
		Name:      "vault",
		OwnerID:   ownerID,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, s.CreateVault(ctx, vault))
	return vault
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), "oracle", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestStorage_Ping(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestDialect_Q(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{
			name:   "sqlite keeps placeholders",
			driver: DriverSQLite,
			query:  "SELECT * FROM t WHERE a = ? AND b = ?",
			want:   "SELECT * FROM t WHERE a = ? AND b = ?",
		},
		{
			name:   "postgres numbers placeholders",
			driver: DriverPostgres,
			query:  "SELECT * FROM t WHERE a = ? AND b = ?",
			want:   "SELECT * FROM t WHERE a = $1 AND b = $2",
		},
		{
			name:   "pgx alias",
			driver: "pgx",
			query:  "UPDATE t SET a = ? WHERE id = ?",
			want:   "UPDATE t SET a = $1 WHERE id = $2",
		},
		{
			name:   "no placeholders",
			driver: DriverPostgres,
			query:  "SELECT 1",
			want:   "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.q(tt.query))
		})
	}
}

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		err        error
		name       string
		constraint string
		want       bool
	}{
		{
			name:       "sqlite message",
			err:        errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"),
			constraint: "users.email (2067)",
			want:       true,
		},
		{
			name:       "postgres unique",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "users_pseudo_key"},
			constraint: "users_pseudo_key",
			want:       true,
		},
		{
			name: "postgres other code",
			err:  &pgconn.PgError{Code: "23503"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
		},
		{
			name: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint, ok := uniqueViolation(tt.err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.constraint, constraint)
		})
	}
}

func TestForeignKeyViolation(t *testing.T) {
	assert.True(t, foreignKeyViolation(errors.New("constraint failed: FOREIGN KEY constraint failed (787)")))
	assert.True(t, foreignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, foreignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, foreignKeyViolation(nil))
}
