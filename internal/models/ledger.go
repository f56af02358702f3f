package models

// Ledger is the isolation boundary: every account, category, transaction,
// budget and tag belongs to exactly one ledger.
type Ledger struct {
	Base
	Name         string `gorm:"not null" json:"name"`
	CurrencyCode string `gorm:"size:3;not null" json:"currency_code"`
	IsDefault    bool   `gorm:"not null;index" json:"is_default"`
	IsArchived   bool   `gorm:"not null" json:"is_archived"`
	SortOrder    int    `gorm:"not null" json:"sort_order"`
}
