package api

// DroppedMemberDTO - участник, отброшенный при импорте
type DroppedMemberDTO struct {
	VaultName string `json:"vaultName"`
	UserID    string `json:"userId"`
	Reason    string `json:"reason"`
}

// DroppedAttachmentDTO - вложение, не перенесенное при импорте
type DroppedAttachmentDTO struct {
	VaultName   string `json:"vaultName"`
	ElementName string `json:"elementName"`
	Filename    string `json:"filename"`
	Reason      string `json:"reason"`
}

// ImportedVaultDTO - созданное при импорте хранилище
type ImportedVaultDTO struct {
	SourceID string `json:"sourceId"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Elements int    `json:"elements"`
}

// ImportResponse - отчет импорта; Error заполнен при частичном импорте
type ImportResponse struct {
	Error              string                 `json:"error,omitempty"`
	Vaults             []ImportedVaultDTO     `json:"vaults"`
	DroppedMembers     []DroppedMemberDTO     `json:"droppedMembers"`
	DroppedAttachments []DroppedAttachmentDTO `json:"droppedAttachments"`
	Elements           int                    `json:"elements"`
}
