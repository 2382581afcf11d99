package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Limits for element requests
const (
	MaxURIs         = 32
	MaxCustomFields = 64
	MaxNoteLen      = 10000
)

// Custom field types
const (
	FieldTypeText     = "text"
	FieldTypePassword = "password"
)

// CustomFieldDTO - пользовательское поле
type CustomFieldDTO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// ElementPermissionDTO - per-element grant
type ElementPermissionDTO struct {
	UserID  string `json:"userId"`
	CanEdit bool   `json:"canEdit"`
}

// ElementRequest - создание и обновление элемента.
// Password: nil - не менять (при обновлении), "" - удалить.
type ElementRequest struct {
	Password     *string                `json:"password,omitempty"`
	Name         string                 `json:"name"`
	Username     string                 `json:"username"`
	Note         string                 `json:"note"`
	URIs         []string               `json:"uris"`
	CustomFields []CustomFieldDTO       `json:"customFields"`
	Permissions  []ElementPermissionDTO `json:"permissions"`
	IsSensitive  bool                   `json:"isSensitive"`
}

// Validate checks names, enumerations and caps
func (r ElementRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.URIs) > MaxURIs {
		return fmt.Errorf("at most %d uris allowed", MaxURIs)
	}
	if len(r.Note) > MaxNoteLen {
		return fmt.Errorf("note must not exceed %d characters", MaxNoteLen)
	}
	if len(r.CustomFields) > MaxCustomFields {
		return fmt.Errorf("at most %d custom fields allowed", MaxCustomFields)
	}
	for i, f := range r.CustomFields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("customFields[%d]: name is required", i)
		}
		switch f.Type {
		case "", FieldTypeText, FieldTypePassword:
		default:
			return fmt.Errorf("customFields[%d]: type must be %q or %q", i, FieldTypeText, FieldTypePassword)
		}
	}
	for i, p := range r.Permissions {
		if p.UserID == "" {
			return fmt.Errorf("permissions[%d]: userId is required", i)
		}
	}
	return nil
}

// AttachmentResponse - метаданные вложения
type AttachmentResponse struct {
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
}

// ElementResponse - элемент. Password всегда шифротекст.
type ElementResponse struct {
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	ID           string                 `json:"id"`
	VaultID      string                 `json:"vaultId"`
	Name         string                 `json:"name"`
	Username     string                 `json:"username"`
	Password     string                 `json:"password,omitempty"`
	Note         string                 `json:"note"`
	URIs         []string               `json:"uris"`
	CustomFields []CustomFieldDTO       `json:"customFields"`
	Attachments  []AttachmentResponse   `json:"attachments"`
	Permissions  []ElementPermissionDTO `json:"permissions"`
	IsSensitive  bool                   `json:"isSensitive"`
}

// ChallengeResponse - какой фактор нужен для reveal
type ChallengeResponse struct {
	State  string `json:"state"`
	Factor string `json:"factor"`
}

// RevealRequest - PIN или пароль для sensitive элемента
type RevealRequest struct {
	Proof string `json:"proof"`
}

// RevealResponse - расшифрованный пароль
type RevealResponse struct {
	Password string `json:"password"`
	State    string `json:"state"`
}

// FailedBlobDTO - вложение, blob которого не удалось удалить
type FailedBlobDTO struct {
	AttachmentID string `json:"attachmentId"`
	Error        string `json:"error"`
}

// DeleteReportResponse - итог удаления (HTTP 207 при частичном сбое)
type DeleteReportResponse struct {
	Failed          []FailedBlobDTO `json:"failed"`
	DeletedElements int             `json:"deletedElements"`
	DeletedBlobs    int             `json:"deletedBlobs"`
}
