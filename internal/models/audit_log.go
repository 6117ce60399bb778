package models

// AuditLog journals ledger mutations. Effects is a JSON object of account
// ID to the signed balance change the mutation applied.
type AuditLog struct {
	Base
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `gorm:"not null;index" json:"resource_id"`
	Effects      string `json:"effects,omitempty"`
	Changes      string `json:"changes,omitempty"`
}
