package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/access"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/sensitive"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/pkg/api"
)

// DefaultMaxAttachmentSize - 10 MiB
const DefaultMaxAttachmentSize int64 = 10 << 20

// ElementService manages elements, their secrets and attachments
type ElementService struct {
	elements      storage.ElementStorage
	vaults        storage.VaultStorage
	users         storage.UserStorage
	blobs         storage.BlobStorage
	cipher        *crypto.FieldCipher
	policy        *access.Policy
	gate          *sensitive.Gate
	reaper        *blobReaper
	logger        *slog.Logger
	now           func() time.Time
	maxAttachment int64
}

// ElementServiceConfig collects ElementService dependencies
type ElementServiceConfig struct {
	Elements          storage.ElementStorage
	Vaults            storage.VaultStorage
	Users             storage.UserStorage
	Blobs             storage.BlobStorage
	Cipher            *crypto.FieldCipher
	Policy            *access.Policy
	Gate              *sensitive.Gate
	Publisher         events.Publisher
	Logger            *slog.Logger
	MaxAttachmentSize int64
}

// NewElementService creates a new element service
func NewElementService(cfg ElementServiceConfig) *ElementService {
	maxSize := cfg.MaxAttachmentSize
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}

	return &ElementService{
		elements:      cfg.Elements,
		vaults:        cfg.Vaults,
		users:         cfg.Users,
		blobs:         cfg.Blobs,
		cipher:        cfg.Cipher,
		policy:        cfg.Policy,
		gate:          cfg.Gate,
		reaper:        &blobReaper{blobs: cfg.Blobs, publisher: cfg.Publisher, logger: cfg.Logger},
		logger:        cfg.Logger,
		now:           time.Now,
		maxAttachment: maxSize,
	}
}

// List returns the elements of a vault the user can read
func (s *ElementService) List(ctx context.Context, userID, vaultID string) ([]*models.Element, error) {
	if _, err := s.authorizeVault(ctx, userID, vaultID, access.OpRead); err != nil {
		return nil, err
	}

	elements, err := s.elements.ListVaultElements(ctx, vaultID)
	if err != nil {
		return nil, storageErr(err)
	}
	return elements, nil
}

// Create adds an element to the vault. The password is stored encrypted.
func (s *ElementService) Create(ctx context.Context, userID, vaultID string, req api.ElementRequest) (*models.Element, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	if _, err := s.authorizeVault(ctx, userID, vaultID, access.OpWrite); err != nil {
		return nil, err
	}

	now := s.now()
	element := &models.Element{
		ID:          uuid.New().String(),
		VaultID:     vaultID,
		Attachments: []models.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyRequest(element, req)

	if req.Password != nil && *req.Password != "" {
		encrypted, err := s.cipher.Encrypt(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
		element.Password = encrypted
	}

	if err := s.elements.CreateElement(ctx, element); err != nil {
		return nil, storageErr(err)
	}

	s.logger.InfoContext(ctx, "Element created",
		slog.String("element_id", element.ID),
		slog.String("vault_id", vaultID))

	return element, nil
}

// Get returns the element with its password still encrypted
func (s *ElementService) Get(ctx context.Context, userID, elementID string) (*models.Element, error) {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpRead)
	return element, err
}

// Update replaces the element fields. A nil password keeps the stored ciphertext.
func (s *ElementService) Update(ctx context.Context, userID, elementID string, req api.ElementRequest) (*models.Element, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpWrite)
	if err != nil {
		return nil, err
	}

	applyRequest(element, req)
	if req.Password != nil {
		element.Password = ""
		if *req.Password != "" {
			encrypted, err := s.cipher.Encrypt(*req.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt password: %w", err)
			}
			element.Password = encrypted
		}
	}
	element.UpdatedAt = s.now()

	if err := s.elements.UpdateElement(ctx, element); err != nil {
		return nil, storageErr(err)
	}

	return element, nil
}

// Delete removes attachment blobs, then the element. The element row is
// removed even if some blobs fail; the report lists them.
func (s *ElementService) Delete(ctx context.Context, userID, elementID string) (*DeleteReport, error) {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpDelete)
	if err != nil {
		return nil, err
	}

	report := s.reaper.reap(ctx, element)

	if err := s.elements.DeleteElement(ctx, elementID); err != nil {
		return report, storageErr(err)
	}
	report.DeletedElements = 1
	s.reaper.deleted(ctx, element, userID)

	s.logger.InfoContext(ctx, "Element deleted",
		slog.String("element_id", elementID),
		slog.Int("blobs", report.DeletedBlobs),
		slog.Int("failed_blobs", len(report.Failed)))

	return report, report.Err()
}

// Challenge tells which factor Reveal needs for this element
func (s *ElementService) Challenge(ctx context.Context, userID, elementID string) (sensitive.Decision, error) {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpRead)
	if err != nil {
		return sensitive.Decision{State: sensitive.StateDenied}, err
	}

	user, err := s.freshUser(ctx, userID)
	if err != nil {
		return sensitive.Decision{State: sensitive.StateDenied}, err
	}

	decision, err := s.gate.Challenge(user, element)
	if err != nil {
		return decision, gateErr(err)
	}
	return decision, nil
}

// Reveal decrypts the password after the gate. Every call re-checks the proof.
func (s *ElementService) Reveal(ctx context.Context, userID, elementID, proof string) (string, sensitive.Decision, error) {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpRead)
	if err != nil {
		return "", sensitive.Decision{State: sensitive.StateDenied}, err
	}

	// флаги hasPin/hasPassword берем из БД, не из токена
	user, err := s.freshUser(ctx, userID)
	if err != nil {
		return "", sensitive.Decision{State: sensitive.StateDenied}, err
	}

	decision, err := s.gate.Verify(user, element, proof)
	if err != nil {
		s.logger.WarnContext(ctx, "Sensitive reveal denied",
			slog.String("user_id", userID),
			slog.String("element_id", elementID))
		return "", decision, gateErr(err)
	}

	if element.Password == "" {
		return "", decision, nil
	}

	plaintext, err := s.cipher.Decrypt(element.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to decrypt element password",
			slog.String("element_id", elementID),
			slog.Any("error", err))
		return "", decision, err
	}

	return plaintext, decision, nil
}

// AddAttachment stores the file in blob storage and links it to the element.
// If the row insert fails the new blob is removed again.
func (s *ElementService) AddAttachment(ctx context.Context, userID, elementID, filename, contentType string, r io.Reader) (*models.Attachment, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return nil, common.Validationf("filename is required")
	}

	if _, _, err := s.authorizeElement(ctx, userID, elementID, access.OpWrite); err != nil {
		return nil, err
	}

	counter := &countingReader{r: io.LimitReader(r, s.maxAttachment+1)}
	ref, err := s.blobs.Put(ctx, name, counter)
	if err != nil {
		return nil, storageErr(fmt.Errorf("failed to store attachment: %w", err))
	}

	if counter.n > s.maxAttachment {
		s.discardBlob(ctx, ref)
		return nil, common.Validationf("attachment exceeds %d bytes", s.maxAttachment)
	}

	attachment := &models.Attachment{
		ID:          uuid.New().String(),
		Filename:    name,
		BlobRef:     ref,
		ContentType: contentType,
		Size:        counter.n,
		CreatedAt:   s.now(),
	}

	if err := s.elements.AddAttachment(ctx, elementID, attachment); err != nil {
		s.discardBlob(ctx, ref)
		return nil, storageErr(err)
	}

	return attachment, nil
}

// OpenAttachment returns attachment metadata and its content. Caller closes the reader.
func (s *ElementService) OpenAttachment(ctx context.Context, userID, elementID, attachmentID string) (*models.Attachment, io.ReadCloser, error) {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpRead)
	if err != nil {
		return nil, nil, err
	}

	attachment, ok := element.Attachment(attachmentID)
	if !ok {
		return nil, nil, storageErr(storage.ErrAttachmentNotFound)
	}

	rc, err := s.blobs.Get(ctx, attachment.BlobRef)
	if err != nil {
		return nil, nil, storageErr(err)
	}

	return &attachment, rc, nil
}

// RemoveAttachment deletes the blob first, then the row.
// A blob failure keeps the row so the removal can be retried.
func (s *ElementService) RemoveAttachment(ctx context.Context, userID, elementID, attachmentID string) error {
	element, _, err := s.authorizeElement(ctx, userID, elementID, access.OpWrite)
	if err != nil {
		return err
	}

	attachment, ok := element.Attachment(attachmentID)
	if !ok {
		return storageErr(storage.ErrAttachmentNotFound)
	}

	if err := s.blobs.Delete(ctx, attachment.BlobRef); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
		s.logger.ErrorContext(ctx, "Failed to delete attachment blob",
			slog.String("element_id", elementID),
			slog.String("attachment_id", attachmentID),
			slog.Any("error", err))
		return fmt.Errorf("%w: attachment blob not removed: %v", common.ErrPartialFailure, err)
	}

	if err := s.elements.RemoveAttachment(ctx, elementID, attachmentID); err != nil {
		return storageErr(err)
	}

	return nil
}

func (s *ElementService) authorizeVault(ctx context.Context, userID, vaultID string, op access.Operation) (*models.Vault, error) {
	vault, err := s.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := s.policy.Authorize(userID, vault, op); err != nil {
		return nil, err
	}
	return vault, nil
}

func (s *ElementService) authorizeElement(ctx context.Context, userID, elementID string, op access.Operation) (*models.Element, *models.Vault, error) {
	element, err := s.elements.GetElement(ctx, elementID)
	if err != nil {
		return nil, nil, storageErr(err)
	}

	vault, err := s.authorizeVault(ctx, userID, element.VaultID, op)
	if err != nil {
		return nil, nil, err
	}

	return element, vault, nil
}

func (s *ElementService) freshUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrUnauthenticated)
		}
		return nil, storageErr(err)
	}
	return user, nil
}

func (s *ElementService) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "Failed to discard orphan blob",
			slog.String("blob_ref", ref),
			slog.Any("error", err))
	}
}

// gateErr maps gate errors to Forbidden, keeping the gate message
func gateErr(err error) error {
	if errors.Is(err, sensitive.ErrGateDenied) || errors.Is(err, sensitive.ErrNoSecondFactor) {
		return fmt.Errorf("%w: %w", common.ErrForbidden, err)
	}
	return err
}

func applyRequest(element *models.Element, req api.ElementRequest) {
	element.Name = strings.TrimSpace(req.Name)
	element.Username = req.Username
	element.Note = req.Note
	element.IsSensitive = req.IsSensitive

	element.URIs = make([]string, 0, len(req.URIs))
	for _, u := range req.URIs {
		if u = strings.TrimSpace(u); u != "" {
			element.URIs = append(element.URIs, u)
		}
	}

	element.CustomFields = make([]models.CustomField, 0, len(req.CustomFields))
	for _, f := range req.CustomFields {
		t, _ := models.ParseFieldType(f.Type)
		element.CustomFields = append(element.CustomFields, models.CustomField{Name: f.Name, Value: f.Value, Type: t})
	}

	element.Permissions = make([]models.ElementPermission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		element.Permissions = append(element.Permissions, models.ElementPermission{UserID: p.UserID, CanEdit: p.CanEdit})
	}
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSpace(name)
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
