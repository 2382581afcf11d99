// Package transfer exports a user's vaults to a portable bundle and imports it back.
package transfer

import (
	"fmt"
	"time"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/validation"
)

// BundleVersion - текущая версия формата bundle
const BundleVersion = 1

// Bundle - переносимый снимок хранилищ владельца
type Bundle struct {
	ExportedAt time.Time     `json:"exportedAt" cbor:"exportedAt"`
	Vaults     []VaultRecord `json:"vaults" cbor:"vaults"`
	Version    int           `json:"version" cbor:"version"`
}

// VaultRecord - хранилище внутри bundle
type VaultRecord struct {
	ID       string          `json:"id" cbor:"id"`
	Name     string          `json:"name" cbor:"name"`
	Members  []MemberRecord  `json:"members" cbor:"members"`
	Elements []ElementRecord `json:"elements" cbor:"elements"`
}

// MemberRecord - участник хранилища
type MemberRecord struct {
	UserID     string            `json:"userId" cbor:"userId"`
	Permission models.Permission `json:"permission" cbor:"permission"`
	Invitation models.Invitation `json:"invitation" cbor:"invitation"`
}

// ElementRecord - элемент. Password либо в wire-формате, либо открытым текстом.
type ElementRecord struct {
	ID           string                     `json:"id" cbor:"id"`
	Name         string                     `json:"name" cbor:"name"`
	Username     string                     `json:"username" cbor:"username"`
	Password     string                     `json:"password,omitempty" cbor:"password,omitempty"`
	Note         string                     `json:"note" cbor:"note"`
	URIs         []string                   `json:"uris" cbor:"uris"`
	CustomFields []models.CustomField       `json:"customFields" cbor:"customFields"`
	Attachments  []models.Attachment        `json:"attachments" cbor:"attachments"`
	Permissions  []models.ElementPermission `json:"permissions" cbor:"permissions"`
	IsSensitive  bool                       `json:"isSensitive" cbor:"isSensitive"`
}

// Validate checks the bundle shape. Every failure wraps ErrImportFormat.
func (b *Bundle) Validate() error {
	if b.Version != BundleVersion {
		return formatErrorf("unsupported bundle version %d", b.Version)
	}

	for i, v := range b.Vaults {
		if err := validation.ValidateName(v.Name); err != nil {
			return formatErrorf("vault #%d: %v", i, err)
		}

		for j, m := range v.Members {
			if m.UserID == "" {
				return formatErrorf("vault %q member #%d: missing userId", v.Name, j)
			}
			if _, err := models.ParsePermission(string(m.Permission)); err != nil {
				return formatErrorf("vault %q member #%d: %v", v.Name, j, err)
			}
			if m.Invitation != "" {
				if _, err := models.ParseInvitation(string(m.Invitation)); err != nil {
					return formatErrorf("vault %q member #%d: %v", v.Name, j, err)
				}
			}
		}

		for j, e := range v.Elements {
			if err := validation.ValidateName(e.Name); err != nil {
				return formatErrorf("vault %q element #%d: %v", v.Name, j, err)
			}
			for k, f := range e.CustomFields {
				if _, err := models.ParseFieldType(string(f.Type)); err != nil {
					return formatErrorf("vault %q element %q field #%d: %v", v.Name, e.Name, k, err)
				}
			}
			for k, a := range e.Attachments {
				if a.BlobRef == "" {
					return formatErrorf("vault %q element %q attachment #%d: missing fileRef", v.Name, e.Name, k)
				}
			}
		}
	}

	return nil
}

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrImportFormat, fmt.Sprintf(format, args...))
}
