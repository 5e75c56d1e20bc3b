// Package models defines data structures for Folio
package models

import (
	"fmt"
	"strings"
	"time"
)

// Holding represents a position in a tradable symbol owned by one user.
type Holding struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Symbol      string    `json:"symbol"`                 // ticker, uppercase
	Quantity    float64   `json:"quantity"`               // units held
	AverageCost float64   `json:"average_cost"`           // cost basis per unit, in Currency
	LastPrice   float64   `json:"last_price,omitempty"`   // most recent known price per unit; 0 = unknown
	Currency    string    `json:"currency,omitempty"`     // ISO 4217; empty = system base currency
	Region      string    `json:"region,omitempty"`       // display metadata (exchange/region)
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the holding invariants: non-empty symbol, non-negative
// quantity and cost.
func (h *Holding) Validate() error {
	if strings.TrimSpace(h.Symbol) == "" {
		return fmt.Errorf("holding symbol is required")
	}
	if h.Quantity < 0 {
		return fmt.Errorf("holding quantity must be non-negative, got %f", h.Quantity)
	}
	if h.AverageCost < 0 {
		return fmt.Errorf("holding average cost must be non-negative, got %f", h.AverageCost)
	}
	return nil
}

// Normalize uppercases the symbol and currency codes in place.
func (h *Holding) Normalize() {
	h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
}

// CurrencyOr returns the holding currency, or fallback when unset.
func (h *Holding) CurrencyOr(fallback string) string {
	if h.Currency != "" {
		return h.Currency
	}
	return fallback
}

// CurrentValue returns the holding's current market value in its native
// currency: last price when known and positive, cost basis otherwise.
func (h *Holding) CurrentValue() float64 {
	if h.LastPrice > 0 {
		return h.LastPrice * h.Quantity
	}
	return h.AverageCost * h.Quantity
}

// CostValue returns the holding's cost basis in its native currency.
func (h *Holding) CostValue() float64 {
	return h.AverageCost * h.Quantity
}

// PortfolioSnapshot is one persisted daily total-value record per user.
// At most one snapshot exists per (user, date) — the store enforces this
// with an idempotent upsert keyed on that pair.
type PortfolioSnapshot struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Date       string  `json:"date"`     // calendar date, "2006-01-02"
	Value      float64 `json:"value"`    // total market value in Currency
	Currency   string  `json:"currency"` // base currency at snapshot time
	BookCost   float64 `json:"book_cost"`
	Unrealized float64 `json:"unrealized"` // Value - BookCost
	PnL        float64 `json:"pnl"`        // mirrors Unrealized
}

// User is an account that owns holdings and snapshots.
type User struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	BaseCurrency string    `json:"base_currency,omitempty"` // display currency preference; empty = system default
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// PortfolioSummary contains the overview totals for one user's holdings,
// all expressed in the requested base currency.
type PortfolioSummary struct {
	UserID       string  `json:"user_id"`
	BaseCurrency string  `json:"base_currency"`
	TotalValue   float64 `json:"total_value"`
	TotalCost    float64 `json:"total_cost"`
	Unrealized   float64 `json:"unrealized"`
	DayChangePct float64 `json:"day_change_pct"` // % move between the last two series points
	Holdings     int     `json:"holdings"`
}
