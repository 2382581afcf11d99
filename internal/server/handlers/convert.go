package handlers

import (
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/internal/server/transfer"
	"github.com/iudanet/supwarden/pkg/api"
)

func toUserResponse(u *models.User) api.UserResponse {
	return api.UserResponse{
		ID:          u.ID,
		Pseudo:      u.Pseudo,
		Email:       u.Email,
		GoogleID:    u.GoogleID,
		HasPassword: u.HasPassword,
		HasPin:      u.HasPin,
		CreatedAt:   u.CreatedAt,
	}
}

func toAuthResponse(res *services.AuthResult) api.AuthResponse {
	return api.AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	}
}

func toVaultResponse(v *models.Vault) api.VaultResponse {
	members := make([]api.MemberResponse, 0, len(v.Members))
	for _, m := range v.Members {
		members = append(members, api.MemberResponse{
			UserID:     m.UserID,
			Pseudo:     m.Pseudo,
			Permission: string(m.Permission),
			Invitation: string(m.Invitation),
		})
	}

	return api.VaultResponse{
		ID:        v.ID,
		Name:      v.Name,
		OwnerID:   v.OwnerID,
		Members:   members,
		IsShared:  v.IsShared(),
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func toElementResponse(e *models.Element) api.ElementResponse {
	fields := make([]api.CustomFieldDTO, 0, len(e.CustomFields))
	for _, f := range e.CustomFields {
		fields = append(fields, api.CustomFieldDTO{Name: f.Name, Value: f.Value, Type: string(f.Type)})
	}

	attachments := make([]api.AttachmentResponse, 0, len(e.Attachments))
	for i := range e.Attachments {
		attachments = append(attachments, toAttachmentResponse(&e.Attachments[i]))
	}

	permissions := make([]api.ElementPermissionDTO, 0, len(e.Permissions))
	for _, p := range e.Permissions {
		permissions = append(permissions, api.ElementPermissionDTO{UserID: p.UserID, CanEdit: p.CanEdit})
	}

	uris := e.URIs
	if uris == nil {
		uris = []string{}
	}

	return api.ElementResponse{
		ID:           e.ID,
		VaultID:      e.VaultID,
		Name:         e.Name,
		Username:     e.Username,
		Password:     e.Password,
		Note:         e.Note,
		URIs:         uris,
		CustomFields: fields,
		Attachments:  attachments,
		Permissions:  permissions,
		IsSensitive:  e.IsSensitive,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toAttachmentResponse(a *models.Attachment) api.AttachmentResponse {
	return api.AttachmentResponse{
		ID:          a.ID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
}

func toDeleteReportResponse(r *services.DeleteReport) api.DeleteReportResponse {
	failed := make([]api.FailedBlobDTO, 0, len(r.Failed))
	for _, f := range r.Failed {
		failed = append(failed, api.FailedBlobDTO{
			AttachmentID: f.AttachmentID,
			Error:        f.Err.Error(),
		})
	}

	return api.DeleteReportResponse{
		Failed:          failed,
		DeletedElements: r.DeletedElements,
		DeletedBlobs:    r.DeletedBlobs,
	}
}

func toImportResponse(r *transfer.ImportReport) api.ImportResponse {
	resp := api.ImportResponse{
		Vaults:             make([]api.ImportedVaultDTO, 0, len(r.Vaults)),
		DroppedMembers:     make([]api.DroppedMemberDTO, 0, len(r.DroppedMembers)),
		DroppedAttachments: make([]api.DroppedAttachmentDTO, 0, len(r.DroppedAttachments)),
		Elements:           r.Elements,
	}
	for _, v := range r.Vaults {
		resp.Vaults = append(resp.Vaults, api.ImportedVaultDTO{SourceID: v.SourceID, ID: v.ID, Name: v.Name, Elements: v.Elements})
	}
	for _, d := range r.DroppedMembers {
		resp.DroppedMembers = append(resp.DroppedMembers, api.DroppedMemberDTO{VaultName: d.VaultName, UserID: d.UserID, Reason: d.Reason})
	}
	for _, d := range r.DroppedAttachments {
		resp.DroppedAttachments = append(resp.DroppedAttachments, api.DroppedAttachmentDTO{
			VaultName:   d.VaultName,
			ElementName: d.ElementName,
			Filename:    d.Filename,
			Reason:      d.Reason,
		})
	}
	return resp
}
