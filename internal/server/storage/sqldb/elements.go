package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/supwarden/internal/dbx"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/storage"
)

const elementColumns = `id, vault_id, name, username, password, note, uris, custom_fields, permissions, is_sensitive, created_at, updated_at`

// CreateElement inserts the element and its attachments in one transaction
func (s *Storage) CreateElement(ctx context.Context, element *models.Element) error {
	uris, fields, perms, err := encodeElementJSON(element)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			INSERT INTO elements (` + elementColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, s.dialect.q(query),
			element.ID,
			element.VaultID,
			element.Name,
			element.Username,
			nullString(element.Password),
			element.Note,
			uris,
			fields,
			perms,
			element.IsSensitive,
			element.CreatedAt.UTC(),
			element.UpdatedAt.UTC(),
		); err != nil {
			if foreignKeyViolation(err) {
				return storage.ErrVaultNotFound
			}
			return fmt.Errorf("failed to insert element: %w", err)
		}

		for i := range element.Attachments {
			if err := s.insertAttachment(ctx, tx, element.ID, &element.Attachments[i]); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetElement retrieves element with attachments
func (s *Storage) GetElement(ctx context.Context, elementID string) (*models.Element, error) {
	query := `SELECT ` + elementColumns + ` FROM elements WHERE id = ?`

	element, err := scanElement(s.db.QueryRowContext(ctx, s.dialect.q(query), elementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrElementNotFound
		}
		return nil, fmt.Errorf("failed to get element: %w", err)
	}

	attachments, err := s.queryAttachments(ctx, `
		SELECT id, element_id, filename, blob_ref, content_type, size, created_at
		FROM attachments
		WHERE element_id = ?
		ORDER BY created_at, id
	`, elementID)
	if err != nil {
		return nil, err
	}
	element.Attachments = attachments[elementID]
	if element.Attachments == nil {
		element.Attachments = []models.Attachment{}
	}

	return element, nil
}

// ListVaultElements returns elements of a vault with attachments
func (s *Storage) ListVaultElements(ctx context.Context, vaultID string) ([]*models.Element, error) {
	query := `SELECT ` + elementColumns + ` FROM elements WHERE vault_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.dialect.q(query), vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}

	elements := make([]*models.Element, 0)
	for rows.Next() {
		element, err := scanElement(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		elements = append(elements, element)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate elements: %w", err)
	}
	rows.Close()

	attachments, err := s.queryAttachments(ctx, `
		SELECT a.id, a.element_id, a.filename, a.blob_ref, a.content_type, a.size, a.created_at
		FROM attachments a
		JOIN elements e ON e.id = a.element_id
		WHERE e.vault_id = ?
		ORDER BY a.created_at, a.id
	`, vaultID)
	if err != nil {
		return nil, err
	}

	for _, element := range elements {
		element.Attachments = attachments[element.ID]
		if element.Attachments == nil {
			element.Attachments = []models.Attachment{}
		}
	}

	return elements, nil
}

// UpdateElement updates element fields
func (s *Storage) UpdateElement(ctx context.Context, element *models.Element) error {
	uris, fields, perms, err := encodeElementJSON(element)
	if err != nil {
		return err
	}

	query := `
		UPDATE elements
		SET name = ?, username = ?, password = ?, note = ?, uris = ?,
		    custom_fields = ?, permissions = ?, is_sensitive = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query),
		element.Name,
		element.Username,
		nullString(element.Password),
		element.Note,
		uris,
		fields,
		perms,
		element.IsSensitive,
		element.UpdatedAt.UTC(),
		element.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update element: %w", err)
	}

	return expectOneRow(result, storage.ErrElementNotFound)
}

// DeleteElement deletes the element. Attachment rows cascade.
func (s *Storage) DeleteElement(ctx context.Context, elementID string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.q(`DELETE FROM elements WHERE id = ?`), elementID)
	if err != nil {
		return fmt.Errorf("failed to delete element: %w", err)
	}

	return expectOneRow(result, storage.ErrElementNotFound)
}

// AddAttachment inserts an attachment row
func (s *Storage) AddAttachment(ctx context.Context, elementID string, attachment *models.Attachment) error {
	return s.insertAttachment(ctx, s.db, elementID, attachment)
}

// RemoveAttachment deletes an attachment row
func (s *Storage) RemoveAttachment(ctx context.Context, elementID, attachmentID string) error {
	query := `DELETE FROM attachments WHERE id = ? AND element_id = ?`

	result, err := s.db.ExecContext(ctx, s.dialect.q(query), attachmentID, elementID)
	if err != nil {
		return fmt.Errorf("failed to remove attachment: %w", err)
	}

	return expectOneRow(result, storage.ErrAttachmentNotFound)
}

func (s *Storage) insertAttachment(ctx context.Context, db dbx.DBTX, elementID string, a *models.Attachment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO attachments (id, element_id, filename, blob_ref, content_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, s.dialect.q(query),
		a.ID,
		elementID,
		a.Filename,
		a.BlobRef,
		a.ContentType,
		a.Size,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		if foreignKeyViolation(err) {
			return storage.ErrElementNotFound
		}
		return fmt.Errorf("failed to insert attachment: %w", err)
	}

	return nil
}

// queryAttachments groups attachment rows by element id
func (s *Storage) queryAttachments(ctx context.Context, query string, arg string) (map[string][]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.q(query), arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Attachment)
	for rows.Next() {
		var a models.Attachment
		var elementID string
		if err := rows.Scan(&a.ID, &elementID, &a.Filename, &a.BlobRef, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out[elementID] = append(out[elementID], a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElement(row rowScanner) (*models.Element, error) {
	element := &models.Element{}
	var password sql.NullString
	var uris, fields, perms string

	err := row.Scan(
		&element.ID,
		&element.VaultID,
		&element.Name,
		&element.Username,
		&password,
		&element.Note,
		&uris,
		&fields,
		&perms,
		&element.IsSensitive,
		&element.CreatedAt,
		&element.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	element.Password = password.String

	if err := json.Unmarshal([]byte(uris), &element.URIs); err != nil {
		return nil, fmt.Errorf("failed to decode uris: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &element.CustomFields); err != nil {
		return nil, fmt.Errorf("failed to decode custom fields: %w", err)
	}
	if err := json.Unmarshal([]byte(perms), &element.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}

	if element.URIs == nil {
		element.URIs = []string{}
	}
	if element.CustomFields == nil {
		element.CustomFields = []models.CustomField{}
	}
	if element.Permissions == nil {
		element.Permissions = []models.ElementPermission{}
	}

	return element, nil
}

func encodeElementJSON(element *models.Element) (string, string, string, error) {
	uris := element.URIs
	if uris == nil {
		uris = []string{}
	}
	fields := element.CustomFields
	if fields == nil {
		fields = []models.CustomField{}
	}
	perms := element.Permissions
	if perms == nil {
		perms = []models.ElementPermission{}
	}

	urisJSON, err := json.Marshal(uris)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode uris: %w", err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode custom fields: %w", err)
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode permissions: %w", err)
	}

	return string(urisJSON), string(fieldsJSON), string(permsJSON), nil
}
