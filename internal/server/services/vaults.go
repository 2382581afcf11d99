package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/access"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/internal/validation"
	"github.com/iudanet/supwarden/pkg/api"
)

// VaultService manages vaults and their membership
type VaultService struct {
	vaults    storage.VaultStorage
	elements  storage.ElementStorage
	users     storage.UserStorage
	policy    *access.Policy
	reaper    *blobReaper
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewVaultService creates a new vault service
func NewVaultService(
	vaults storage.VaultStorage,
	elements storage.ElementStorage,
	users storage.UserStorage,
	blobs storage.BlobStorage,
	policy *access.Policy,
	publisher events.Publisher,
	logger *slog.Logger,
) *VaultService {
	return &VaultService{
		vaults:    vaults,
		elements:  elements,
		users:     users,
		policy:    policy,
		reaper:    &blobReaper{blobs: blobs, publisher: publisher, logger: logger},
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Create creates a vault owned by ownerID. Initial members start as pending.
func (s *VaultService) Create(ctx context.Context, ownerID string, req api.CreateVaultRequest) (*models.Vault, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	if err := validation.ValidateName(req.Name); err != nil {
		return nil, validationErr(err)
	}

	members := make([]models.Member, 0, len(req.Members))
	seen := make(map[string]bool, len(req.Members))
	for _, m := range req.Members {
		user, err := s.resolveUser(ctx, m.UserID, m.Pseudo)
		if err != nil {
			return nil, err
		}
		if user.ID == ownerID {
			return nil, common.Validationf("the owner cannot be a member of own vault")
		}
		if seen[user.ID] {
			return nil, common.Validationf("member %s listed twice", user.Pseudo)
		}
		seen[user.ID] = true

		members = append(members, models.Member{
			UserID:     user.ID,
			Pseudo:     user.Pseudo,
			Permission: models.Permission(m.Permission),
			Invitation: models.InvitationPending,
		})
	}

	now := s.now()
	vault := &models.Vault{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		OwnerID:   ownerID,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.vaults.CreateVault(ctx, vault); err != nil {
		return nil, storageErr(err)
	}

	for _, m := range members {
		publish(ctx, s.publisher, s.logger, events.Event{
			Subject: events.SubjectMemberInvited,
			VaultID: vault.ID,
			UserID:  m.UserID,
			ActorID: ownerID,
		})
	}

	s.logger.InfoContext(ctx, "Vault created",
		slog.String("vault_id", vault.ID),
		slog.String("owner_id", ownerID),
		slog.Int("members", len(members)))

	return vault, nil
}

// ListOwned returns the vaults owned by userID
func (s *VaultService) ListOwned(ctx context.Context, userID string) ([]*models.Vault, error) {
	vaults, err := s.vaults.ListOwnedVaults(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return vaults, nil
}

// ListShared returns vaults where userID is a member, with the caller's own
// permission and invitation. Pending invitations are included.
func (s *VaultService) ListShared(ctx context.Context, userID string) ([]models.SharedVault, error) {
	vaults, err := s.vaults.ListMemberVaults(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}

	shared := make([]models.SharedVault, 0, len(vaults))
	for _, v := range vaults {
		m, ok := v.Member(userID)
		if !ok || m.Invitation == models.InvitationRefused {
			continue
		}
		shared = append(shared, models.SharedVault{
			Vault:      visibleTo(userID, v),
			Permission: m.Permission,
			Invitation: m.Invitation,
		})
	}

	return shared, nil
}

// Get returns the vault if userID can read it
func (s *VaultService) Get(ctx context.Context, userID, vaultID string) (*models.Vault, error) {
	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Authorize(userID, vault, access.OpRead); err != nil {
		return nil, err
	}

	return visibleTo(userID, vault), nil
}

// Rename changes the vault name. Owner only.
func (s *VaultService) Rename(ctx context.Context, userID, vaultID, name string) (*models.Vault, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, validationErr(err)
	}

	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(userID, vault, access.OpDelete); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.vaults.RenameVault(ctx, vaultID, strings.TrimSpace(name), now); err != nil {
		return nil, storageErr(err)
	}

	vault.Name = strings.TrimSpace(name)
	vault.UpdatedAt = now
	return vault, nil
}

// Delete removes the vault with all its elements and attachment blobs. Owner only.
// The vault is gone even when the report lists failed blobs.
func (s *VaultService) Delete(ctx context.Context, userID, vaultID string) (*DeleteReport, error) {
	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(userID, vault, access.OpDelete); err != nil {
		return nil, err
	}

	report, err := s.deleteVault(ctx, vault, userID)
	if err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "Vault deleted",
		slog.String("vault_id", vaultID),
		slog.Int("elements", report.DeletedElements),
		slog.Int("failed_blobs", len(report.Failed)))

	return report, report.Err()
}

// DeleteOwnedVaults runs the vault deletion for every vault of ownerID.
// Used by account deletion.
func (s *VaultService) DeleteOwnedVaults(ctx context.Context, ownerID string) (*DeleteReport, error) {
	total := &DeleteReport{}

	vaults, err := s.vaults.ListOwnedVaults(ctx, ownerID)
	if err != nil {
		return total, storageErr(err)
	}

	for _, v := range vaults {
		report, err := s.deleteVault(ctx, v, ownerID)
		if report != nil {
			total.merge(report)
		}
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (s *VaultService) deleteVault(ctx context.Context, vault *models.Vault, actorID string) (*DeleteReport, error) {
	report := &DeleteReport{}

	elements, err := s.elements.ListVaultElements(ctx, vault.ID)
	if err != nil {
		return report, storageErr(err)
	}

	for _, e := range elements {
		report.merge(s.reaper.reap(ctx, e))
	}

	// строки элементов, вложений и участников удаляются каскадом
	if err := s.vaults.DeleteVault(ctx, vault.ID); err != nil {
		return report, storageErr(err)
	}
	report.DeletedElements = len(elements)

	for _, e := range elements {
		s.reaper.deleted(ctx, e, actorID)
	}

	return report, nil
}

// AddMember invites the user with the given pseudo. Owner only.
func (s *VaultService) AddMember(ctx context.Context, userID, vaultID string, req api.MemberRequest) (*models.Vault, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(userID, vault, access.OpManageMembership); err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, req.UserID, req.Pseudo)
	if err != nil {
		return nil, err
	}
	if user.ID == vault.OwnerID {
		return nil, common.Validationf("you cannot add yourself to your own vault")
	}

	member := models.Member{
		UserID:     user.ID,
		Pseudo:     user.Pseudo,
		Permission: models.Permission(req.Permission),
		Invitation: models.InvitationPending,
	}
	if err := s.vaults.AddMember(ctx, vaultID, member); err != nil {
		return nil, storageErr(err)
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Subject: events.SubjectMemberInvited,
		VaultID: vaultID,
		UserID:  user.ID,
		ActorID: userID,
	})

	return s.load(ctx, vaultID)
}

// UpdateMemberPermission changes a member's permission. Owner only.
func (s *VaultService) UpdateMemberPermission(ctx context.Context, userID, vaultID, memberID string, req api.UpdateMemberRequest) (*models.Vault, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(userID, vault, access.OpManageMembership); err != nil {
		return nil, err
	}

	if err := s.vaults.UpdateMemberPermission(ctx, vaultID, memberID, models.Permission(req.Permission)); err != nil {
		return nil, storageErr(err)
	}

	return s.load(ctx, vaultID)
}

// RemoveMember removes a member. Owner only.
func (s *VaultService) RemoveMember(ctx context.Context, userID, vaultID, memberID string) error {
	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(userID, vault, access.OpManageMembership); err != nil {
		return err
	}

	if err := s.vaults.RemoveMember(ctx, vaultID, memberID); err != nil {
		return storageErr(err)
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Subject: events.SubjectMemberRemoved,
		VaultID: vaultID,
		UserID:  memberID,
		ActorID: userID,
	})

	return nil
}

// AcceptInvitation marks the caller's invitation accepted
func (s *VaultService) AcceptInvitation(ctx context.Context, userID, vaultID string) (*models.Vault, error) {
	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	m, ok := vault.Member(userID)
	if !ok {
		return nil, fmt.Errorf("%w: you are not invited to this vault", common.ErrForbidden)
	}

	if m.Invitation != models.InvitationAccepted {
		if err := s.vaults.UpdateMemberInvitation(ctx, vaultID, userID, models.InvitationAccepted); err != nil {
			return nil, storageErr(err)
		}
		publish(ctx, s.publisher, s.logger, events.Event{
			Subject: events.SubjectMemberAccepted,
			VaultID: vaultID,
			UserID:  userID,
			ActorID: userID,
		})
	}

	return s.Get(ctx, userID, vaultID)
}

// RefuseInvitation removes the caller from the vault
func (s *VaultService) RefuseInvitation(ctx context.Context, userID, vaultID string) error {
	vault, err := s.load(ctx, vaultID)
	if err != nil {
		return err
	}

	if _, ok := vault.Member(userID); !ok {
		return fmt.Errorf("%w: you are not invited to this vault", common.ErrForbidden)
	}

	if err := s.vaults.RemoveMember(ctx, vaultID, userID); err != nil {
		return storageErr(err)
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Subject: events.SubjectMemberRefused,
		VaultID: vaultID,
		UserID:  userID,
		ActorID: userID,
	})

	return nil
}

func (s *VaultService) load(ctx context.Context, vaultID string) (*models.Vault, error) {
	vault, err := s.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return nil, storageErr(err)
	}
	return vault, nil
}

// resolveUser находит пользователя по id или pseudo
func (s *VaultService) resolveUser(ctx context.Context, userID, pseudo string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if userID != "" {
		user, err = s.users.GetUserByID(ctx, userID)
	} else {
		user, err = s.users.GetUserByPseudo(ctx, strings.TrimSpace(pseudo))
	}

	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, common.NotFoundf("user %s not found", firstNonEmpty(userID, pseudo))
		}
		return nil, storageErr(err)
	}

	return user, nil
}

// visibleTo hides pending and refused members from everyone but the owner.
// The caller always sees their own entry.
func visibleTo(userID string, vault *models.Vault) *models.Vault {
	if vault.OwnerID == userID {
		return vault
	}

	out := *vault
	out.Members = make([]models.Member, 0, len(vault.Members))
	for _, m := range vault.Members {
		if m.Invitation == models.InvitationAccepted || m.UserID == userID {
			out.Members = append(out.Members, m)
		}
	}
	return &out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
