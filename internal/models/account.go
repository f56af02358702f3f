package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountKind represents the kind of account
type AccountKind string

const (
	AccountKindCash       AccountKind = "cash"
	AccountKindChecking   AccountKind = "checking"
	AccountKindCreditCard AccountKind = "credit_card"
	AccountKindEWallet    AccountKind = "e_wallet"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountKindCash, AccountKindChecking, AccountKindCreditCard, AccountKindEWallet:
		return true
	}
	return false
}

// Account is a balance-holding bucket. Balance is signed; a credit card that
// carries debt has a negative balance. It is only changed by applying or
// reverting transactions.
type Account struct {
	Base
	LedgerID         string          `gorm:"type:uuid;not null;index" json:"ledger_id"`
	Name             string          `gorm:"not null" json:"name"`
	Kind             AccountKind     `gorm:"not null" json:"kind"`
	Balance          decimal.Decimal `gorm:"type:text;not null" json:"balance"`
	IsArchived       bool            `gorm:"not null" json:"is_archived"`
	ExcludeFromTotal bool            `gorm:"not null" json:"exclude_from_total"`
	SortOrder        int             `gorm:"not null" json:"sort_order"`

	// Credit card only
	CreditLimit  decimal.Decimal `gorm:"type:text;not null" json:"credit_limit"`
	StatementDay int             `json:"statement_day,omitempty"`
	DueDay       int             `json:"due_day,omitempty"`
}

// BeforeCreate clears credit card fields on other kinds.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if err := a.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if a.Kind != AccountKindCreditCard {
		a.CreditLimit = decimal.Zero
		a.StatementDay = 0
		a.DueDay = 0
	}
	return nil
}

// IsCreditCard reports whether the account is a credit card.
func (a *Account) IsCreditCard() bool {
	return a.Kind == AccountKindCreditCard
}

// AvailableBalance returns what can still be spent from the account. For
// credit cards that is the unused part of the limit; for everything else it
// is the balance itself.
func (a *Account) AvailableBalance() decimal.Decimal {
	if !a.IsCreditCard() {
		return a.Balance
	}
	debt := decimal.Max(decimal.Zero, a.Balance.Neg())
	return a.CreditLimit.Sub(debt)
}

// CountsTowardTotal reports whether the balance is part of ledger totals.
func (a *Account) CountsTowardTotal() bool {
	return !a.IsArchived && !a.ExcludeFromTotal
}
