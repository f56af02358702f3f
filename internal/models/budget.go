package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
	BudgetPeriodCustom  BudgetPeriod = "custom"
)

// Valid reports whether p is a known budget period.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case BudgetPeriodMonthly, BudgetPeriodYearly, BudgetPeriodCustom:
		return true
	}
	return false
}

// Advance moves t forward by one period and keeps its clock time. The day of
// the month is anchorDay clamped to the length of the target month, so a
// window anchored on the 31st ends on Feb 28 and returns to Mar 31. A zero
// anchorDay uses t's own day. Custom periods do not advance.
func (p BudgetPeriod) Advance(t time.Time, anchorDay int) time.Time {
	var months int
	switch p {
	case BudgetPeriodMonthly:
		months = 1
	case BudgetPeriodYearly:
		months = 12
	default:
		return t
	}
	if anchorDay <= 0 {
		anchorDay = t.Day()
	}
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := min(anchorDay, daysInMonth(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BudgetStatus bands budget progress.
type BudgetStatus string

const (
	BudgetStatusSafe     BudgetStatus = "safe"
	BudgetStatusCaution  BudgetStatus = "caution"
	BudgetStatusWarning  BudgetStatus = "warning"
	BudgetStatusExceeded BudgetStatus = "exceeded"
)

var (
	cautionThreshold  = decimal.RequireFromString("0.8")
	warningThreshold  = decimal.RequireFromString("0.9")
	exceededThreshold = decimal.NewFromInt(1)
)

// StatusForProgress maps progress onto a status band.
func StatusForProgress(progress decimal.Decimal) BudgetStatus {
	switch {
	case progress.GreaterThanOrEqual(exceededThreshold):
		return BudgetStatusExceeded
	case progress.GreaterThanOrEqual(warningThreshold):
		return BudgetStatusWarning
	case progress.GreaterThanOrEqual(cautionThreshold):
		return BudgetStatusCaution
	}
	return BudgetStatusSafe
}

// Budget caps spending in a category over a window [StartDate, EndDate).
type Budget struct {
	Base
	LedgerID        string          `gorm:"type:uuid;not null;index" json:"ledger_id"`
	CategoryID      string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Name            string          `gorm:"not null" json:"name"`
	Amount          decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	Period          BudgetPeriod    `gorm:"not null" json:"period"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	AnchorDay       int             `gorm:"not null;default:0" json:"anchor_day"`
	RolloverEnabled bool            `gorm:"not null" json:"rollover_enabled"`
	RolloverAmount  decimal.Decimal `gorm:"type:text;not null" json:"rollover_amount"`
	IsActive        bool            `gorm:"not null" json:"is_active"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// PeriodEnd returns the exclusive end of a monthly or yearly window starting
// at start, anchored on start's day. For custom periods it returns start
// unchanged.
func PeriodEnd(period BudgetPeriod, start time.Time) time.Time {
	return period.Advance(start, start.Day())
}

// anchor is the day of the month windows are aligned to.
func (b *Budget) anchor() int {
	if b.AnchorDay > 0 {
		return b.AnchorDay
	}
	return b.StartDate.Day()
}

// Cap is the spendable total for the current window.
func (b *Budget) Cap() decimal.Decimal {
	return b.Amount.Add(b.RolloverAmount)
}

// Contains reports whether t falls inside the budget window.
func (b *Budget) Contains(t time.Time) bool {
	return !t.Before(b.StartDate) && t.Before(b.EndDate)
}

// Remaining returns cap minus used. It is negative when overspent.
func (b *Budget) Remaining(used decimal.Decimal) decimal.Decimal {
	return b.Cap().Sub(used)
}

// Progress returns used / cap, unbounded above 1. A non-positive cap gives 0
// when nothing is used and 1 otherwise.
func (b *Budget) Progress(used decimal.Decimal) decimal.Decimal {
	budgetCap := b.Cap()
	if !budgetCap.IsPositive() {
		if used.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1)
	}
	return used.DivRound(budgetCap, 8)
}

// RemainingDays counts whole days left in the window as seen from now,
// rounding partial days up.
func (b *Budget) RemainingDays(now time.Time) int {
	from := now
	if from.Before(b.StartDate) {
		from = b.StartDate
	}
	left := b.EndDate.Sub(from)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// DailyAverage returns how much can be spent per remaining day, rounded to
// two places. It is zero when nothing remains or the window has ended.
func (b *Budget) DailyAverage(used decimal.Decimal, now time.Time) decimal.Decimal {
	remaining := b.Remaining(used)
	days := b.RemainingDays(now)
	if !remaining.IsPositive() || days <= 0 {
		return decimal.Zero
	}
	return remaining.DivRound(decimal.NewFromInt(int64(days)), 2)
}

// BudgetUsage is the derived state of a budget at a point in time.
type BudgetUsage struct {
	BudgetID       string          `json:"budget_id"`
	Amount         decimal.Decimal `json:"amount"`
	RolloverAmount decimal.Decimal `json:"rollover_amount"`
	Used           decimal.Decimal `json:"used"`
	Remaining      decimal.Decimal `json:"remaining"`
	Progress       decimal.Decimal `json:"progress"`
	Status         BudgetStatus    `json:"status"`
	IsOverBudget   bool            `json:"is_over_budget"`
	RemainingDays  int             `json:"remaining_days"`
	DailyAverage   decimal.Decimal `json:"daily_average"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

// Usage derives the full budget state from the amount used in the window.
func (b *Budget) Usage(used decimal.Decimal, now time.Time) BudgetUsage {
	progress := b.Progress(used)
	return BudgetUsage{
		BudgetID:       b.ID,
		Amount:         b.Amount,
		RolloverAmount: b.RolloverAmount,
		Used:           used,
		Remaining:      b.Remaining(used),
		Progress:       progress,
		Status:         StatusForProgress(progress),
		IsOverBudget:   progress.GreaterThanOrEqual(exceededThreshold),
		RemainingDays:  b.RemainingDays(now),
		DailyAverage:   b.DailyAverage(used, now),
		StartDate:      b.StartDate,
		EndDate:        b.EndDate,
	}
}

// Rollover carries what is left of the current window into the next one and
// moves monthly and yearly windows to the period that follows. An overspent
// window carries nothing. It reports false and changes nothing when rollover
// is disabled.
func (b *Budget) Rollover(used decimal.Decimal) bool {
	if !b.RolloverEnabled {
		return false
	}
	if b.Progress(used).GreaterThanOrEqual(exceededThreshold) {
		b.RolloverAmount = decimal.Zero
	} else {
		b.RolloverAmount = b.Remaining(used)
	}
	if b.Period != BudgetPeriodCustom {
		b.StartDate = b.EndDate
		b.EndDate = b.Period.Advance(b.StartDate, b.anchor())
	}
	return true
}
