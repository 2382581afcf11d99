package storage

import (
	"context"
	"time"

	"github.com/iudanet/supwarden/internal/models"
)

// VaultStorage defines interface for vaults and their membership rows.
// Each membership change is a single atomic statement, so concurrent
// changes for different users never overwrite each other.
type VaultStorage interface {
	// CreateVault inserts the vault and its initial members in one transaction
	CreateVault(ctx context.Context, vault *models.Vault) error

	// GetVault retrieves vault with members
	// Returns ErrVaultNotFound if vault doesn't exist
	GetVault(ctx context.Context, vaultID string) (*models.Vault, error)

	// ListOwnedVaults returns vaults owned by the user
	// Returns empty slice if none
	ListOwnedVaults(ctx context.Context, ownerID string) ([]*models.Vault, error)

	// ListMemberVaults returns vaults where the user is listed as member
	// Returns empty slice if none
	ListMemberVaults(ctx context.Context, userID string) ([]*models.Vault, error)

	// RenameVault changes the vault name
	// Returns ErrVaultNotFound if vault doesn't exist
	RenameVault(ctx context.Context, vaultID, name string, updatedAt time.Time) error

	// DeleteVault deletes the vault, its members and elements rows
	// Returns ErrVaultNotFound if vault doesn't exist
	DeleteVault(ctx context.Context, vaultID string) error

	// AddMember inserts a membership row
	// Returns ErrMemberAlreadyExists on duplicate, ErrUserNotFound for unknown user
	AddMember(ctx context.Context, vaultID string, member models.Member) error

	// UpdateMemberPermission changes the member permission
	// Returns ErrMemberNotFound if the row doesn't exist
	UpdateMemberPermission(ctx context.Context, vaultID, userID string, permission models.Permission) error

	// UpdateMemberInvitation changes the member invitation state
	// Returns ErrMemberNotFound if the row doesn't exist
	UpdateMemberInvitation(ctx context.Context, vaultID, userID string, invitation models.Invitation) error

	// RemoveMember deletes a membership row
	// Returns ErrMemberNotFound if the row doesn't exist
	RemoveMember(ctx context.Context, vaultID, userID string) error
}
