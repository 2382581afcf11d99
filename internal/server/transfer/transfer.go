package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/storage"
)

// Drop reasons
const (
	DropReasonOwner       = "member is the importing owner"
	DropReasonUnknownUser = "unknown user"
	DropReasonDuplicate   = "duplicate member"

	DropReasonForeignBlob = "attachment is not owned by the importing user"
	DropReasonMissingBlob = "attachment content not found"
)

// DroppedMember - участник, не перенесенный при импорте
type DroppedMember struct {
	VaultName string `json:"vaultName"`
	UserID    string `json:"userId"`
	Reason    string `json:"reason"`
}

// DroppedAttachment - вложение, которое не было скопировано при импорте
type DroppedAttachment struct {
	VaultName   string `json:"vaultName"`
	ElementName string `json:"elementName"`
	Filename    string `json:"filename"`
	Reason      string `json:"reason"`
}

// ImportedVault maps a source vault to the created one
type ImportedVault struct {
	SourceID string `json:"sourceId"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Elements int    `json:"elements"`
}

// ImportReport - результат импорта, заполняется и при частичном сбое
type ImportReport struct {
	Vaults             []ImportedVault     `json:"vaults"`
	DroppedMembers     []DroppedMember     `json:"droppedMembers"`
	DroppedAttachments []DroppedAttachment `json:"droppedAttachments"`
	Elements           int                 `json:"elements"`
}

// Service exports and imports bundles
type Service struct {
	users    storage.UserStorage
	vaults   storage.VaultStorage
	elements storage.ElementStorage
	blobs    storage.BlobStorage
	cipher   *crypto.FieldCipher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new transfer service
func NewService(
	users storage.UserStorage,
	vaults storage.VaultStorage,
	elements storage.ElementStorage,
	blobs storage.BlobStorage,
	cipher *crypto.FieldCipher,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		vaults:   vaults,
		elements: elements,
		blobs:    blobs,
		cipher:   cipher,
		logger:   logger,
		now:      time.Now,
	}
}

// Export emits every vault owned by ownerID. Ciphertext and blob refs are copied as is.
func (s *Service) Export(ctx context.Context, ownerID string) (*Bundle, error) {
	vaults, err := s.vaults.ListOwnedVaults(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}

	bundle := &Bundle{
		Version:    BundleVersion,
		ExportedAt: s.now().UTC(),
		Vaults:     make([]VaultRecord, 0, len(vaults)),
	}

	for _, v := range vaults {
		elements, err := s.elements.ListVaultElements(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list elements of vault %s: %w", v.ID, err)
		}

		record := VaultRecord{
			ID:       v.ID,
			Name:     v.Name,
			Members:  make([]MemberRecord, 0, len(v.Members)),
			Elements: make([]ElementRecord, 0, len(elements)),
		}
		for _, m := range v.Members {
			record.Members = append(record.Members, MemberRecord{
				UserID:     m.UserID,
				Permission: m.Permission,
				Invitation: m.Invitation,
			})
		}
		for _, e := range elements {
			record.Elements = append(record.Elements, ElementRecord{
				ID:           e.ID,
				Name:         e.Name,
				Username:     e.Username,
				Password:     e.Password,
				Note:         e.Note,
				URIs:         e.URIs,
				CustomFields: e.CustomFields,
				Attachments:  e.Attachments,
				Permissions:  e.Permissions,
				IsSensitive:  e.IsSensitive,
			})
		}

		bundle.Vaults = append(bundle.Vaults, record)
	}

	return bundle, nil
}

// Import recreates the bundle's vaults under newOwnerID with fresh ids.
// Attachments are copied into new blobs, and only when newOwnerID already
// owns the referenced blob; other attachments are dropped and reported.
// There is no transaction: on failure the report lists what was already stored.
func (s *Service) Import(ctx context.Context, bundle *Bundle, newOwnerID string) (*ImportReport, error) {
	report := &ImportReport{
		Vaults:             []ImportedVault{},
		DroppedMembers:     []DroppedMember{},
		DroppedAttachments: []DroppedAttachment{},
	}

	if err := bundle.Validate(); err != nil {
		return report, err
	}

	owned, err := s.ownedAttachments(ctx, newOwnerID)
	if err != nil {
		return report, err
	}

	for _, src := range bundle.Vaults {
		members, dropped, err := s.resolveMembers(ctx, src, newOwnerID)
		if err != nil {
			return report, err
		}
		report.DroppedMembers = append(report.DroppedMembers, dropped...)

		now := s.now()
		vault := &models.Vault{
			ID:        uuid.New().String(),
			Name:      src.Name,
			OwnerID:   newOwnerID,
			Members:   members,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.vaults.CreateVault(ctx, vault); err != nil {
			return report, fmt.Errorf("failed to create vault %q: %w", src.Name, err)
		}

		imported := ImportedVault{SourceID: src.ID, ID: vault.ID, Name: vault.Name}
		for _, e := range src.Elements {
			element, err := s.buildElement(vault.ID, e)
			if err != nil {
				report.Vaults = append(report.Vaults, imported)
				return report, err
			}

			attachments, dropped, err := s.copyAttachments(ctx, src.Name, e, owned)
			report.DroppedAttachments = append(report.DroppedAttachments, dropped...)
			if err != nil {
				report.Vaults = append(report.Vaults, imported)
				return report, err
			}
			element.Attachments = attachments

			if err := s.elements.CreateElement(ctx, element); err != nil {
				s.discardBlobs(ctx, attachments)
				report.Vaults = append(report.Vaults, imported)
				return report, fmt.Errorf("failed to create element %q: %w", e.Name, err)
			}
			imported.Elements++
			report.Elements++
		}

		report.Vaults = append(report.Vaults, imported)
		s.logger.InfoContext(ctx, "Vault imported",
			slog.String("vault_id", vault.ID),
			slog.Int("elements", imported.Elements),
			slog.Int("members", len(members)))
	}

	return report, nil
}

// resolveMembers keeps only existing users other than the new owner.
// Imported members start as pending: the new owner invites them again.
func (s *Service) resolveMembers(ctx context.Context, src VaultRecord, ownerID string) ([]models.Member, []DroppedMember, error) {
	members := make([]models.Member, 0, len(src.Members))
	dropped := make([]DroppedMember, 0)
	seen := make(map[string]bool, len(src.Members))

	for _, m := range src.Members {
		drop := func(reason string) {
			dropped = append(dropped, DroppedMember{VaultName: src.Name, UserID: m.UserID, Reason: reason})
		}

		switch {
		case m.UserID == ownerID:
			drop(DropReasonOwner)
			continue
		case seen[m.UserID]:
			drop(DropReasonDuplicate)
			continue
		}

		user, err := s.users.GetUserByID(ctx, m.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				drop(DropReasonUnknownUser)
				continue
			}
			return nil, nil, fmt.Errorf("failed to look up member %s: %w", m.UserID, err)
		}

		seen[m.UserID] = true
		members = append(members, models.Member{
			UserID:     user.ID,
			Pseudo:     user.Pseudo,
			Permission: m.Permission,
			Invitation: models.InvitationPending,
		})
	}

	return members, dropped, nil
}

func (s *Service) buildElement(vaultID string, e ElementRecord) (*models.Element, error) {
	password := e.Password
	if password != "" && !crypto.IsWireFormat(password) {
		encrypted, err := s.cipher.Encrypt(password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password of %q: %w", e.Name, err)
		}
		password = encrypted
	}

	now := s.now()
	fields := make([]models.CustomField, 0, len(e.CustomFields))
	for _, f := range e.CustomFields {
		t, _ := models.ParseFieldType(string(f.Type))
		fields = append(fields, models.CustomField{Name: f.Name, Value: f.Value, Type: t})
	}

	return &models.Element{
		ID:           uuid.New().String(),
		VaultID:      vaultID,
		Name:         e.Name,
		Username:     e.Username,
		Password:     password,
		Note:         e.Note,
		URIs:         e.URIs,
		CustomFields: fields,
		Attachments:  []models.Attachment{},
		Permissions:  e.Permissions,
		IsSensitive:  e.IsSensitive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ownedAttachments indexes the attachments of ownerID's vaults by blob ref
func (s *Service) ownedAttachments(ctx context.Context, ownerID string) (map[string]models.Attachment, error) {
	vaults, err := s.vaults.ListOwnedVaults(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}

	owned := make(map[string]models.Attachment)
	for _, v := range vaults {
		elements, err := s.elements.ListVaultElements(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list elements of vault %s: %w", v.ID, err)
		}
		for _, e := range elements {
			for _, a := range e.Attachments {
				owned[a.BlobRef] = a
			}
		}
	}

	return owned, nil
}

// copyAttachments duplicates every owned blob of e under a fresh ref.
// Metadata comes from the stored attachment, never from the bundle.
func (s *Service) copyAttachments(ctx context.Context, vaultName string, e ElementRecord, owned map[string]models.Attachment) ([]models.Attachment, []DroppedAttachment, error) {
	attachments := make([]models.Attachment, 0, len(e.Attachments))
	var dropped []DroppedAttachment

	drop := func(a models.Attachment, reason string) {
		dropped = append(dropped, DroppedAttachment{
			VaultName:   vaultName,
			ElementName: e.Name,
			Filename:    a.Filename,
			Reason:      reason,
		})
	}

	for _, a := range e.Attachments {
		src, ok := owned[a.BlobRef]
		if !ok {
			s.logger.WarnContext(ctx, "Import dropped foreign attachment",
				slog.String("element", e.Name),
				slog.String("blob_ref", a.BlobRef))
			drop(a, DropReasonForeignBlob)
			continue
		}

		ref, size, err := s.copyBlob(ctx, src)
		if err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				drop(src, DropReasonMissingBlob)
				continue
			}
			s.discardBlobs(ctx, attachments)
			return nil, dropped, fmt.Errorf("failed to copy attachment %q: %w", src.Filename, err)
		}

		attachments = append(attachments, models.Attachment{
			ID:          uuid.New().String(),
			Filename:    src.Filename,
			BlobRef:     ref,
			ContentType: src.ContentType,
			Size:        size,
			CreatedAt:   s.now(),
		})
	}

	return attachments, dropped, nil
}

func (s *Service) copyBlob(ctx context.Context, src models.Attachment) (string, int64, error) {
	rc, err := s.blobs.Get(ctx, src.BlobRef)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = rc.Close()
	}()

	counter := &countingReader{r: rc}
	ref, err := s.blobs.Put(ctx, src.Filename, counter)
	if err != nil {
		return "", 0, err
	}

	return ref, counter.n, nil
}

func (s *Service) discardBlobs(ctx context.Context, attachments []models.Attachment) {
	for _, a := range attachments {
		if err := s.blobs.Delete(ctx, a.BlobRef); err != nil {
			s.logger.WarnContext(ctx, "Failed to discard imported blob",
				slog.String("blob_ref", a.BlobRef),
				slog.Any("error", err))
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
