//go:build integration

package database

import (
	"context"
	"testing"

	"pocketbook/internal/models"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pocketbook_test"),
		tcpostgres.WithUsername("pocketbook"),
		tcpostgres.WithPassword("pocketbook"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return url
}

func TestMigrations_UpAndDown(t *testing.T) {
	url := startPostgres(t)

	if err := MigrateUp(url); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	// Second run is a no-op.
	if err := MigrateUp(url); err != nil {
		t.Fatalf("MigrateUp again: %v", err)
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ledger := models.Ledger{Name: "Home", CurrencyCode: "USD", IsDefault: true}
	if err := db.Create(&ledger).Error; err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	account := models.Account{LedgerID: ledger.ID, Name: "Cash", Kind: models.AccountKindCash, Balance: decimal.RequireFromString("12.3456")}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	var loaded models.Account
	if err := db.First(&loaded, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !loaded.Balance.Equal(account.Balance) {
		t.Errorf("balance round trip: got %s, want %s", loaded.Balance, account.Balance)
	}

	second := models.Ledger{Name: "Work", CurrencyCode: "EUR", IsDefault: true}
	if err := db.Create(&second).Error; err == nil {
		t.Error("expected the partial unique index to reject a second default ledger")
	}

	m, err := NewMigrate(url)
	if err != nil {
		t.Fatalf("NewMigrate: %v", err)
	}
	defer CloseMigrate(m)

	version, dirty, err := m.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected clean version 1, got %d dirty=%v", version, dirty)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if db.Migrator().HasTable("ledgers") {
		t.Error("expected ledgers table to be dropped")
	}
}
