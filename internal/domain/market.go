package domain

import (
	"fmt"
	"time"
)

// MarketStatus represents the lifecycle state of a market. Transitions are
// one-directional: active -> resolved or active -> cancelled, never back.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Side identifies one of the two outcomes a participant can back.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Outcome is the terminal result of a market.
type Outcome string

const (
	OutcomeYes       Outcome = "yes"
	OutcomeNo        Outcome = "no"
	OutcomeCancelled Outcome = "cancelled"
)

// Valid reports whether o is one of the defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeCancelled
}

// Category classifies a market proposition.
type Category string

const (
	CategoryKOL    Category = "kol"
	CategoryCrypto Category = "crypto"
	CategoryToken  Category = "token"
	CategoryOther  Category = "other"
)

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryKOL, CategoryCrypto, CategoryToken, CategoryOther:
		return true
	}
	return false
}

// MarketSpec carries the caller-supplied fields for market creation.
type MarketSpec struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           Category `json:"category"`
	ResolutionCriteria string   `json:"resolution_criteria"`
	ResolutionSource   *string  `json:"resolution_source,omitempty"`
	Creator            string   `json:"creator"`
	EndTime            time.Time `json:"end_time"`
	SeedYesPool        float64  `json:"seed_yes_pool"`
	SeedNoPool         float64  `json:"seed_no_pool"`
}

// Market is the aggregate owning the two liquidity pools, status, timing, and
// resolution outcome. All mutations to a single market must be serialized by
// the store; the aggregate itself holds no lock.
type Market struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Category           Category     `json:"category"`
	ResolutionCriteria string       `json:"resolution_criteria"`
	ResolutionSource   *string      `json:"resolution_source,omitempty"`
	Creator            string       `json:"creator"`
	YesPool            float64      `json:"yes_pool"`
	NoPool             float64      `json:"no_pool"`
	Status             MarketStatus `json:"status"`
	Outcome            *Outcome     `json:"outcome,omitempty"`
	EndTime            time.Time    `json:"end_time"`
	ResolvedAt         *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewMarket validates spec and constructs an active market with the given id.
// Seed pools may be zero; the end time must be strictly in the future.
func NewMarket(id string, spec MarketSpec, now time.Time) (Market, error) {
	if spec.Title == "" {
		return Market{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if spec.Creator == "" {
		return Market{}, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}
	if !spec.Category.Valid() {
		return Market{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, spec.Category)
	}
	if !spec.EndTime.After(now) {
		return Market{}, fmt.Errorf("%w: end time must be in the future", ErrInvalidInput)
	}
	if spec.SeedYesPool < 0 || spec.SeedNoPool < 0 {
		return Market{}, fmt.Errorf("%w: seed pools must be non-negative", ErrInvalidInput)
	}

	return Market{
		ID:                 id,
		Title:              spec.Title,
		Description:        spec.Description,
		Category:           spec.Category,
		ResolutionCriteria: spec.ResolutionCriteria,
		ResolutionSource:   spec.ResolutionSource,
		Creator:            spec.Creator,
		YesPool:            spec.SeedYesPool,
		NoPool:             spec.SeedNoPool,
		Status:             MarketStatusActive,
		EndTime:            spec.EndTime.UTC(),
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

// Quote returns the current implied prices from the pools.
func (m *Market) Quote() Quote {
	return PriceQuote(m.YesPool, m.NoPool)
}

// IsTerminal reports whether the market has reached an absorbing state.
func (m *Market) IsTerminal() bool {
	return m.Status != MarketStatusActive
}

// AcceptStake grants shares at the pre-stake price for the chosen side and
// adds amount to that side's pool. It rejects, leaving the market unchanged,
// if the market is not active, the end time has passed, the side is unknown,
// or the amount is not positive. Values are never clamped.
//
// When the chosen side's pre-stake price is zero (its pool is empty while the
// opposite pool is funded) shares are granted at the degenerate half price,
// mirroring the zero-liquidity quote policy.
func (m *Market) AcceptStake(side Side, amount float64, now time.Time) (shares float64, err error) {
	if m.Status != MarketStatusActive {
		return 0, fmt.Errorf("%w: market %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	if !now.Before(m.EndTime) {
		return 0, fmt.Errorf("%w: market %s ended at %s", ErrInvalidState, m.ID, m.EndTime.Format(time.RFC3339))
	}
	if !side.Valid() {
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidInput, side)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidInput, amount)
	}

	price := m.Quote().Side(side)
	if price == 0 {
		price = 0.5
	}
	shares = amount / price

	if side == SideYes {
		m.YesPool += amount
	} else {
		m.NoPool += amount
	}
	m.UpdatedAt = now.UTC()

	return shares, nil
}

// Resolve transitions the market to its terminal state. First resolution
// wins: any call on an already-terminal market fails with ErrInvalidState and
// leaves the recorded outcome untouched.
func (m *Market) Resolve(outcome Outcome, now time.Time) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidInput, outcome)
	}
	if m.Status != MarketStatusActive {
		return fmt.Errorf("%w: market %s already %s", ErrInvalidState, m.ID, m.Status)
	}

	if outcome == OutcomeCancelled {
		m.Status = MarketStatusCancelled
	} else {
		m.Status = MarketStatusResolved
	}
	o := outcome
	m.Outcome = &o
	t := now.UTC()
	m.ResolvedAt = &t
	m.UpdatedAt = t

	return nil
}
