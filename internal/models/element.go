package models

import (
	"fmt"
	"time"
)

// FieldType - тип пользовательского поля
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
)

// ParseFieldType validates a custom field type.
func ParseFieldType(s string) (FieldType, error) {
	switch t := FieldType(s); t {
	case FieldText, FieldPassword:
		return t, nil
	case "":
		return FieldText, nil
	default:
		return "", fmt.Errorf("unknown custom field type %q, expected text or password", s)
	}
}

// CustomField - произвольное поле элемента
type CustomField struct {
	Name  string    `json:"name" cbor:"name"`
	Value string    `json:"value" cbor:"value"`
	Type  FieldType `json:"type" cbor:"type"`
}

// Attachment - ссылка на файл в blob storage
type Attachment struct {
	CreatedAt   time.Time `json:"createdAt" cbor:"-"`
	ID          string    `json:"id" cbor:"id"`
	Filename    string    `json:"filename" cbor:"filename"`
	BlobRef     string    `json:"fileRef" cbor:"fileRef"`
	ContentType string    `json:"contentType,omitempty" cbor:"contentType,omitempty"`
	Size        int64     `json:"size" cbor:"size"`
}

// ElementPermission - per-element grant. Хранится, но не применяется политикой доступа.
type ElementPermission struct {
	UserID  string `json:"userId" cbor:"userId"`
	CanEdit bool   `json:"canEdit" cbor:"canEdit"`
}

// Element - одна запись с учетными данными.
// Password всегда хранится в wire-формате FieldCipher.
type Element struct {
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	ID           string              `json:"id"`
	VaultID      string              `json:"vaultId"`
	Name         string              `json:"name"`
	Username     string              `json:"username"`
	Password     string              `json:"password,omitempty"`
	Note         string              `json:"note"`
	URIs         []string            `json:"uris"`
	CustomFields []CustomField       `json:"customFields"`
	Attachments  []Attachment        `json:"attachments"`
	Permissions  []ElementPermission `json:"permissions"`
	IsSensitive  bool                `json:"isSensitive"`
}

// Attachment returns the attachment with the given id.
func (e *Element) Attachment(id string) (Attachment, bool) {
	for _, a := range e.Attachments {
		if a.ID == id {
			return a, true
		}
	}
	return Attachment{}, false
}
