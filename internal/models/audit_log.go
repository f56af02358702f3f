package models

// AuditLog records mutations made through the API. Rows outlive the ledger
// they reference so the trail survives a cascade delete. LedgerID is nil for
// events outside any ledger, such as token requests.
type AuditLog struct {
	Base
	LedgerID     *string `gorm:"type:uuid;index" json:"ledger_id,omitempty"`
	Action       string  `gorm:"not null" json:"action"`
	ResourceType string  `gorm:"not null" json:"resource_type"`
	ResourceID   string  `json:"resource_id"`
	IPAddress    string  `json:"ip_address"`
	Changes      string  `json:"changes,omitempty"`
}
