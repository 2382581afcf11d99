package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/supwarden/internal/dbx"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/storage"
)

// CreateVault inserts the vault and its members in one transaction
func (s *Storage) CreateVault(ctx context.Context, vault *models.Vault) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			INSERT INTO vaults (id, name, owner_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, s.dialect.q(query),
			vault.ID,
			vault.Name,
			vault.OwnerID,
			vault.CreatedAt.UTC(),
			vault.UpdatedAt.UTC(),
		); err != nil {
			if foreignKeyViolation(err) {
				return storage.ErrUserNotFound
			}
			return fmt.Errorf("failed to insert vault: %w", err)
		}

		for _, m := range vault.Members {
			if err := s.insertMember(ctx, tx, vault.ID, m, vault.CreatedAt); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetVault retrieves vault with members
func (s *Storage) GetVault(ctx context.Context, vaultID string) (*models.Vault, error) {
	query := `SELECT id, name, owner_id, created_at, updated_at FROM vaults WHERE id = ?`

	vault := &models.Vault{}
	err := s.db.QueryRowContext(ctx, s.dialect.q(query), vaultID).Scan(
		&vault.ID,
		&vault.Name,
		&vault.OwnerID,
		&vault.CreatedAt,
		&vault.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrVaultNotFound
		}
		return nil, fmt.Errorf("failed to get vault: %w", err)
	}

	members, err := s.loadMembers(ctx, vault.ID)
	if err != nil {
		return nil, err
	}
	vault.Members = members

	return vault, nil
}

// ListOwnedVaults returns vaults owned by the user
func (s *Storage) ListOwnedVaults(ctx context.Context, ownerID string) ([]*models.Vault, error) {
	query := `
		SELECT id, name, owner_id, created_at, updated_at
		FROM vaults
		WHERE owner_id = ?
		ORDER BY created_at, id
	`
	return s.listVaults(ctx, query, ownerID)
}

// ListMemberVaults returns vaults where the user is a member
func (s *Storage) ListMemberVaults(ctx context.Context, userID string) ([]*models.Vault, error) {
	query := `
		SELECT v.id, v.name, v.owner_id, v.created_at, v.updated_at
		FROM vaults v
		JOIN vault_members m ON m.vault_id = v.id
		WHERE m.user_id = ?
		ORDER BY v.created_at, v.id
	`
	return s.listVaults(ctx, query, userID)
}

func (s *Storage) listVaults(ctx context.Context, query string, arg string) ([]*models.Vault, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.q(query), arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults: %w", err)
	}

	vaults := make([]*models.Vault, 0)
	for rows.Next() {
		vault := &models.Vault{}
		if err := rows.Scan(&vault.ID, &vault.Name, &vault.OwnerID, &vault.CreatedAt, &vault.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		vaults = append(vaults, vault)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate vaults: %w", err)
	}
	// Закрываем до следующих запросов: у SQLite одно соединение
	rows.Close()

	for _, vault := range vaults {
		members, err := s.loadMembers(ctx, vault.ID)
		if err != nil {
			return nil, err
		}
		vault.Members = members
	}

	return vaults, nil
}

// RenameVault changes the vault name
func (s *Storage) RenameVault(ctx context.Context, vaultID, name string, updatedAt time.Time) error {
	query := `UPDATE vaults SET name = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query), name, updatedAt.UTC(), vaultID)
	if err != nil {
		return fmt.Errorf("failed to rename vault: %w", err)
	}

	return expectOneRow(result, storage.ErrVaultNotFound)
}

// DeleteVault deletes the vault. Members, elements and attachment rows cascade.
func (s *Storage) DeleteVault(ctx context.Context, vaultID string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.q(`DELETE FROM vaults WHERE id = ?`), vaultID)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}

	return expectOneRow(result, storage.ErrVaultNotFound)
}

// AddMember inserts a single membership row
func (s *Storage) AddMember(ctx context.Context, vaultID string, member models.Member) error {
	return s.insertMember(ctx, s.db, vaultID, member, time.Now())
}

func (s *Storage) insertMember(ctx context.Context, db dbx.DBTX, vaultID string, member models.Member, createdAt time.Time) error {
	query := `
		INSERT INTO vault_members (vault_id, user_id, permission, invitation, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, s.dialect.q(query),
		vaultID,
		member.UserID,
		string(member.Permission),
		string(member.Invitation),
		createdAt.UTC(),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return storage.ErrMemberAlreadyExists
		}
		if foreignKeyViolation(err) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}

	return nil
}

// UpdateMemberPermission changes the permission of one member
func (s *Storage) UpdateMemberPermission(ctx context.Context, vaultID, userID string, permission models.Permission) error {
	query := `UPDATE vault_members SET permission = ? WHERE vault_id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query), string(permission), vaultID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member permission: %w", err)
	}

	return expectOneRow(result, storage.ErrMemberNotFound)
}

// UpdateMemberInvitation changes the invitation state of one member
func (s *Storage) UpdateMemberInvitation(ctx context.Context, vaultID, userID string, invitation models.Invitation) error {
	query := `UPDATE vault_members SET invitation = ? WHERE vault_id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query), string(invitation), vaultID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member invitation: %w", err)
	}

	return expectOneRow(result, storage.ErrMemberNotFound)
}

// RemoveMember deletes one membership row
func (s *Storage) RemoveMember(ctx context.Context, vaultID, userID string) error {
	query := `DELETE FROM vault_members WHERE vault_id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query), vaultID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return expectOneRow(result, storage.ErrMemberNotFound)
}

func (s *Storage) loadMembers(ctx context.Context, vaultID string) ([]models.Member, error) {
	query := `
		SELECT m.user_id, u.pseudo, m.permission, m.invitation
		FROM vault_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.vault_id = ?
		ORDER BY m.created_at, m.user_id
	`

	rows, err := s.db.QueryContext(ctx, s.dialect.q(query), vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var m models.Member
		var permission, invitation string
		if err := rows.Scan(&m.UserID, &m.Pseudo, &permission, &invitation); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Permission = models.Permission(permission)
		m.Invitation = models.Invitation(invitation)
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}
