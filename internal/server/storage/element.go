package storage

import (
	"context"

	"github.com/iudanet/supwarden/internal/models"
)

// ElementStorage defines interface for elements and attachment rows
type ElementStorage interface {
	// CreateElement inserts the element and its attachments in one transaction
	CreateElement(ctx context.Context, element *models.Element) error

	// GetElement retrieves element with attachments
	// Returns ErrElementNotFound if element doesn't exist
	GetElement(ctx context.Context, elementID string) (*models.Element, error)

	// ListVaultElements returns elements of a vault with attachments
	// Returns empty slice if none
	ListVaultElements(ctx context.Context, vaultID string) ([]*models.Element, error)

	// UpdateElement updates element fields, attachments are left untouched
	// Returns ErrElementNotFound if element doesn't exist
	UpdateElement(ctx context.Context, element *models.Element) error

	// DeleteElement deletes the element row and its attachment rows
	// Returns ErrElementNotFound if element doesn't exist
	DeleteElement(ctx context.Context, elementID string) error

	// AddAttachment inserts an attachment row
	// Returns ErrElementNotFound if element doesn't exist
	AddAttachment(ctx context.Context, elementID string, attachment *models.Attachment) error

	// RemoveAttachment deletes an attachment row
	// Returns ErrAttachmentNotFound if it doesn't exist
	RemoveAttachment(ctx context.Context, elementID, attachmentID string) error
}
