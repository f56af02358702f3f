package models

import (
	"time"

	"pocketbook/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. There is no soft delete:
// entities are archived through their own flags or removed for good.
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model, in dependency order, for AutoMigrate.
// AutoMigrate only builds the SQLite schema, where money columns are TEXT so
// decimals round-trip exactly. PostgreSQL gets NUMERIC(20,4) from the SQL
// migrations.
func All() []interface{} {
	return []interface{}{
		&Ledger{},
		&Account{},
		&Category{},
		&Tag{},
		&Transaction{},
		&Budget{},
		&AuditLog{},
	}
}
