package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places stored for money.
const MoneyScale = 4

// maxMoney bounds the integer part to the 16 digits of NUMERIC(20,4).
var maxMoney = decimal.New(1, 16)

// FitsMoney reports whether d can be stored without rounding or overflow.
func FitsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale)) && d.Abs().LessThan(maxMoney)
}
