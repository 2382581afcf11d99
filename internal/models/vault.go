package models

import (
	"fmt"
	"time"
)

// Permission - уровень доступа участника к хранилищу
type Permission string

const (
	PermissionRead Permission = "read"
	PermissionEdit Permission = "edit"
)

// ParsePermission validates a permission value coming from a request.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionRead, PermissionEdit:
		return p, nil
	default:
		return "", fmt.Errorf("unknown permission %q, expected read or edit", s)
	}
}

// Invitation - состояние приглашения участника
type Invitation string

const (
	InvitationPending  Invitation = "pending"
	InvitationAccepted Invitation = "accepted"
	InvitationRefused  Invitation = "refused"
)

// ParseInvitation validates an invitation state.
func ParseInvitation(s string) (Invitation, error) {
	switch i := Invitation(s); i {
	case InvitationPending, InvitationAccepted, InvitationRefused:
		return i, nil
	default:
		return "", fmt.Errorf("unknown invitation state %q", s)
	}
}

// Member - участник хранилища. Владелец никогда не входит в этот список.
type Member struct {
	UserID     string     `json:"userId"`
	Pseudo     string     `json:"pseudo,omitempty"`
	Permission Permission `json:"permission"`
	Invitation Invitation `json:"invitation"`
}

// Vault (trousseau) - именованный набор элементов
type Vault struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Members   []Member  `json:"members"`
}

// IsShared is true iff the vault has at least one member.
func (v *Vault) IsShared() bool {
	return len(v.Members) > 0
}

// Member returns the membership entry of userID, if any.
func (v *Vault) Member(userID string) (Member, bool) {
	for _, m := range v.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// SharedVault - хранилище, в котором пользователь является участником,
// вместе с его собственным приглашением и правами
type SharedVault struct {
	Vault      *Vault     `json:"vault"`
	Permission Permission `json:"permission"`
	Invitation Invitation `json:"invitation"`
}
