// Package split turns an expense total and a participant set into per-user
// shares. Everything here is pure: no I/O, no clocks.
package split

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy selects how a total is divided.
type Strategy string

const (
	StrategyEqual      Strategy = "equal"
	StrategyWeighted   Strategy = "weighted"
	StrategyPercentage Strategy = "percentage"
	StrategyExact      Strategy = "exact"
	StrategyMargin     Strategy = "margin"
	StrategyMixed      Strategy = "mixed"
)

// Kind is the per-entry allocation used by StrategyMixed.
type Kind string

const (
	KindEqual      Kind = "equal"
	KindPercentage Kind = "percentage"
	KindExact      Kind = "exact"
)

// MarginMode says how a margin value is interpreted.
type MarginMode string

const (
	MarginFixed      MarginMode = "fixed"
	MarginPercentage MarginMode = "percentage"
)

// Margin is added on top of a participant's base share.
type Margin struct {
	Mode  MarginMode
	Value decimal.Decimal
}

// Entry is one participant's input. Only the fields relevant to the chosen
// strategy are read.
type Entry struct {
	UserID     uuid.UUID
	Weight     decimal.Decimal // weighted
	Percentage decimal.Decimal // percentage, mixed
	Amount     decimal.Decimal // exact, mixed
	Kind       Kind            // mixed
	Margin     *Margin         // margin; nil falls back to Request.DefaultMargin
}

// Request describes a split to compute. Entries are processed in order and
// the last one absorbs the rounding remainder.
type Request struct {
	Total         decimal.Decimal
	Strategy      Strategy
	Entries       []Entry
	DefaultMargin Margin
}

// Share is the amount one user owes for an expense.
type Share struct {
	UserID uuid.UUID
	Amount decimal.Decimal
}

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyEqual, StrategyWeighted, StrategyPercentage, StrategyExact, StrategyMargin, StrategyMixed:
		return true
	}

	return false
}

// EqualEntries builds equal-strategy entries for the given users.
func EqualEntries(users []uuid.UUID) []Entry {
	entries := make([]Entry, len(users))
	for i, u := range users {
		entries[i] = Entry{UserID: u}
	}

	return entries
}

// Total sums the share amounts.
func Total(shares []Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}

	return total
}
