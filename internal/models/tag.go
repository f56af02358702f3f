package models

// Tag is a free-form label attached to transactions.
type Tag struct {
	Base
	LedgerID string `gorm:"type:uuid;not null;uniqueIndex:uq_tags_ledger_name" json:"ledger_id"`
	Name     string `gorm:"not null;uniqueIndex:uq_tags_ledger_name" json:"name"`
	Color    string `json:"color,omitempty"`
}
