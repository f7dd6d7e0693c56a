package core

import "github.com/shopspring/decimal"

// Totals is an income/expense pair and the net between them.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// NewTotals derives Balance as income - expense.
func NewTotals(income, expense decimal.Decimal) Totals {
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// MonthlySummary is the derived, never persisted, summary of one month.
type MonthlySummary struct {
	Month Month
	Totals
}
