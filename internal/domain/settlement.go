package domain

import (
	"fmt"
	"time"
)

// Payout is one participant's settled entitlement on one side of a market.
type Payout struct {
	Participant string  `json:"participant"`
	Side        Side    `json:"side"`
	Shares      float64 `json:"shares"`
	Staked      float64 `json:"staked"`
	Amount      float64 `json:"amount"` // claimable amount, zero for losers
	Claimed     bool    `json:"claimed"`
}

// Settlement is the single-shot conversion of a terminal market's positions
// into claimable amounts. Recomputing a settlement from the same market and
// positions yields identical numbers; the store enforces that only one
// settlement row exists per market.
type Settlement struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Outcome   Outcome   `json:"outcome"`
	TotalPot  float64   `json:"total_pot"`
	Refunded  bool      `json:"refunded"` // cancellation or zero-winner fallback
	Payouts   []Payout  `json:"payouts"`
	CreatedAt time.Time `json:"created_at"`
}

// ComputeSettlement derives the payout set for a terminal market.
//
// Outcome yes/no: each winning position receives
// shares/totalWinningShares * (yesPool + noPool); losing positions receive
// zero. Outcome cancelled: every position is refunded exactly its cumulative
// stake. If the winning side holds zero shares the settlement falls back to a
// full refund of both sides instead of dividing by zero.
func ComputeSettlement(id string, m Market, positions []Position, now time.Time) (Settlement, error) {
	if !m.IsTerminal() || m.Outcome == nil {
		return Settlement{}, fmt.Errorf("%w: market %s is not terminal", ErrInvalidState, m.ID)
	}

	s := Settlement{
		ID:        id,
		MarketID:  m.ID,
		Outcome:   *m.Outcome,
		TotalPot:  m.YesPool + m.NoPool,
		CreatedAt: now.UTC(),
	}

	if s.Outcome == OutcomeCancelled {
		s.Refunded = true
		s.Payouts = refundAll(positions)
		return s, nil
	}

	winningSide := SideYes
	if s.Outcome == OutcomeNo {
		winningSide = SideNo
	}

	var totalWinningShares float64
	for _, p := range positions {
		if p.Side == winningSide {
			totalWinningShares += p.Shares
		}
	}

	// Nobody backed the winning side: refund both sides rather than divide
	// by zero.
	if totalWinningShares == 0 {
		s.Refunded = true
		s.Payouts = refundAll(positions)
		return s, nil
	}

	s.Payouts = make([]Payout, 0, len(positions))
	for _, p := range positions {
		payout := Payout{
			Participant: p.Participant,
			Side:        p.Side,
			Shares:      p.Shares,
			Staked:      p.Amount,
		}
		if p.Side == winningSide {
			payout.Amount = p.Shares / totalWinningShares * s.TotalPot
		}
		s.Payouts = append(s.Payouts, payout)
	}

	return s, nil
}

// refundAll returns a payout per position equal to its cumulative stake.
func refundAll(positions []Position) []Payout {
	payouts := make([]Payout, 0, len(positions))
	for _, p := range positions {
		payouts = append(payouts, Payout{
			Participant: p.Participant,
			Side:        p.Side,
			Shares:      p.Shares,
			Staked:      p.Amount,
			Amount:      p.Amount,
		})
	}
	return payouts
}
