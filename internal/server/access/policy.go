// Package access decides which vault operations a user may perform.
package access

import (
	"fmt"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/models"
)

// Operation - вид операции над хранилищем
type Operation int

const (
	OpRead Operation = iota
	OpWrite
	OpManageMembership
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpManageMembership:
		return "manage membership"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Policy evaluates ownership and member grants. It never touches storage.
type Policy struct {
	requireAcceptedForWrite bool
}

// Option configures a Policy.
type Option func(*Policy)

// RequireAcceptedForWrite makes edit members wait for their invitation
// to be accepted before they can write.
func RequireAcceptedForWrite(v bool) Option {
	return func(p *Policy) {
		p.requireAcceptedForWrite = v
	}
}

// NewPolicy creates a Policy.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanRead: владелец или участник с принятым приглашением
func (p *Policy) CanRead(userID string, vault *models.Vault) bool {
	if vault == nil || userID == "" {
		return false
	}
	if isOwner(userID, vault) {
		return true
	}
	m, ok := vault.Member(userID)
	return ok && m.Invitation == models.InvitationAccepted
}

// CanWrite: владелец или участник с правом edit
func (p *Policy) CanWrite(userID string, vault *models.Vault) bool {
	if vault == nil || userID == "" {
		return false
	}
	if isOwner(userID, vault) {
		return true
	}
	m, ok := vault.Member(userID)
	if !ok || m.Permission != models.PermissionEdit {
		return false
	}
	if p.requireAcceptedForWrite {
		return m.Invitation == models.InvitationAccepted
	}
	return true
}

// CanManageMembership: только владелец
func (p *Policy) CanManageMembership(userID string, vault *models.Vault) bool {
	return isOwner(userID, vault)
}

// CanDelete: только владелец (хранилище, элементы, переименование)
func (p *Policy) CanDelete(userID string, vault *models.Vault) bool {
	return isOwner(userID, vault)
}

// Authorize returns common.ErrForbidden when op is not allowed.
func (p *Policy) Authorize(userID string, vault *models.Vault, op Operation) error {
	var allowed bool
	switch op {
	case OpRead:
		allowed = p.CanRead(userID, vault)
	case OpWrite:
		allowed = p.CanWrite(userID, vault)
	case OpManageMembership:
		allowed = p.CanManageMembership(userID, vault)
	case OpDelete:
		allowed = p.CanDelete(userID, vault)
	}
	if !allowed {
		return fmt.Errorf("%w: %s access to vault denied", common.ErrForbidden, op)
	}
	return nil
}

func isOwner(userID string, vault *models.Vault) bool {
	return userID != "" && vault != nil && vault.OwnerID == userID
}
