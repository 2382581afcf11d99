package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Access levels and invitation states on the wire
const (
	PermissionRead     = "read"
	PermissionEdit     = "edit"
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRefused  = "refused"
)

// MemberRequest - участник при создании хранилища или добавлении
type MemberRequest struct {
	UserID     string `json:"userId,omitempty"`
	Pseudo     string `json:"pseudo,omitempty"`
	Permission string `json:"permission"`
}

// Validate checks that the member is identified and the permission is known
func (r MemberRequest) Validate() error {
	if r.UserID == "" && strings.TrimSpace(r.Pseudo) == "" {
		return errors.New("member userId or pseudo is required")
	}
	return validatePermission(r.Permission)
}

// CreateVaultRequest - создание хранилища
type CreateVaultRequest struct {
	Name    string          `json:"name"`
	Members []MemberRequest `json:"members,omitempty"`
}

// Validate checks the name and every member
func (r CreateVaultRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	for i, m := range r.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("members[%d]: %w", i, err)
		}
	}
	return nil
}

// RenameVaultRequest - переименование
type RenameVaultRequest struct {
	Name string `json:"name"`
}

// UpdateMemberRequest - смена прав участника
type UpdateMemberRequest struct {
	Permission string `json:"permission"`
}

// Validate checks the permission
func (r UpdateMemberRequest) Validate() error {
	return validatePermission(r.Permission)
}

// MemberResponse - участник хранилища
type MemberResponse struct {
	UserID     string `json:"userId"`
	Pseudo     string `json:"pseudo"`
	Permission string `json:"permission"`
	Invitation string `json:"invitation"`
}

// VaultResponse - хранилище
type VaultResponse struct {
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	OwnerID   string           `json:"ownerId"`
	Members   []MemberResponse `json:"members"`
	IsShared  bool             `json:"isShared"`
}

// SharedVaultResponse - хранилище, где пользователь участник
type SharedVaultResponse struct {
	Vault      VaultResponse `json:"vault"`
	Permission string        `json:"permission"`
	Invitation string        `json:"invitation"`
}

func validatePermission(p string) error {
	switch p {
	case PermissionRead, PermissionEdit:
		return nil
	default:
		return fmt.Errorf("permission must be %q or %q", PermissionRead, PermissionEdit)
	}
}
