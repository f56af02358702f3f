package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome, TransactionTypeTransfer, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TransactionState tracks whether a transaction's balance effects are
// currently reflected in its accounts.
type TransactionState string

const (
	TransactionStatePending  TransactionState = "pending"
	TransactionStateApplied  TransactionState = "applied"
	TransactionStateReverted TransactionState = "reverted"
)

// Transaction is a single money movement. Amount is a positive magnitude for
// expense, income and transfer. For adjustment it is the signed, non-zero
// delta applied to the destination account.
type Transaction struct {
	Base
	LedgerID             string           `gorm:"type:uuid;not null;index" json:"ledger_id"`
	Type                 TransactionType  `gorm:"not null" json:"type"`
	Amount               decimal.Decimal  `gorm:"type:text;not null" json:"amount"`
	Date                 time.Time        `gorm:"not null;index" json:"date"`
	SourceAccountID      *string          `gorm:"type:uuid;index" json:"source_account_id,omitempty"`
	DestinationAccountID *string          `gorm:"type:uuid;index" json:"destination_account_id,omitempty"`
	CategoryID           *string          `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Note                 string           `json:"note,omitempty"`
	State                TransactionState `gorm:"not null" json:"state"`

	// Relationships
	SourceAccount      *Account  `gorm:"foreignKey:SourceAccountID" json:"source_account,omitempty"`
	DestinationAccount *Account  `gorm:"foreignKey:DestinationAccountID" json:"destination_account,omitempty"`
	Category           *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags               []Tag     `gorm:"many2many:transaction_tags" json:"tags,omitempty"`
}

// BalanceEffect is a signed change to one account's balance.
type BalanceEffect struct {
	AccountID string
	Delta     decimal.Decimal
}

// BalanceEffects returns the balance changes that applying t causes.
// Reverting t applies the same effects negated.
func (t *Transaction) BalanceEffects() ([]BalanceEffect, error) {
	switch t.Type {
	case TransactionTypeExpense:
		if t.SourceAccountID == nil {
			return nil, fmt.Errorf("expense %s has no source account", t.ID)
		}
		return []BalanceEffect{{AccountID: *t.SourceAccountID, Delta: t.Amount.Neg()}}, nil
	case TransactionTypeIncome:
		if t.DestinationAccountID == nil {
			return nil, fmt.Errorf("income %s has no destination account", t.ID)
		}
		return []BalanceEffect{{AccountID: *t.DestinationAccountID, Delta: t.Amount}}, nil
	case TransactionTypeTransfer:
		if t.SourceAccountID == nil || t.DestinationAccountID == nil {
			return nil, fmt.Errorf("transfer %s is missing an account", t.ID)
		}
		return []BalanceEffect{
			{AccountID: *t.SourceAccountID, Delta: t.Amount.Neg()},
			{AccountID: *t.DestinationAccountID, Delta: t.Amount},
		}, nil
	case TransactionTypeAdjustment:
		if t.DestinationAccountID == nil {
			return nil, fmt.Errorf("adjustment %s has no account", t.ID)
		}
		return []BalanceEffect{{AccountID: *t.DestinationAccountID, Delta: t.Amount}}, nil
	}
	return nil, fmt.Errorf("unknown transaction type %q", t.Type)
}

// DisplayAmount returns the amount signed the way it affects the owner:
// expenses negative, income positive, transfers as a magnitude and
// adjustments as their delta.
func (t *Transaction) DisplayAmount() decimal.Decimal {
	if t.Type == TransactionTypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t *Transaction) listedUnderSource() bool {
	return t.Type == TransactionTypeExpense || t.Type == TransactionTypeTransfer
}

// PrimaryAccountID returns the account a transaction is listed under: the
// source for expenses and transfers, the destination otherwise.
func (t *Transaction) PrimaryAccountID() *string {
	if t.listedUnderSource() {
		return t.SourceAccountID
	}
	return t.DestinationAccountID
}

// PrimaryAccount is the loaded account PrimaryAccountID refers to, if any.
func (t *Transaction) PrimaryAccount() *Account {
	if t.listedUnderSource() {
		return t.SourceAccount
	}
	return t.DestinationAccount
}

// IsApplied reports whether the balance effects are currently in effect.
func (t *Transaction) IsApplied() bool {
	return t.State == TransactionStateApplied
}
