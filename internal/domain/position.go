package domain

import "time"

// Position accumulates a participant's stakes on one side of one market.
// A participant holds at most one position per (market, side); repeated
// stakes on the same side fold into the same record.
type Position struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"market_id"`
	Participant string    `json:"participant"`
	Side        Side      `json:"side"`
	Amount      float64   `json:"amount"` // cumulative stake in the base unit
	Shares      float64   `json:"shares"` // cumulative shares granted
	CreatedAt   time.Time `json:"created_at"` // time of first stake
	UpdatedAt   time.Time `json:"updated_at"`
}

// Valuation is the mark-to-market view of a position at the given quote.
type Valuation struct {
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

// ValueAt marks the position against the given quote. The percentage is zero
// when nothing has been staked.
func (p *Position) ValueAt(q Quote) Valuation {
	price := q.Side(p.Side)
	value := p.Shares * price
	pnl := value - p.Amount

	var pct float64
	if p.Amount > 0 {
		pct = pnl / p.Amount * 100
	}

	return Valuation{
		CurrentPrice: price,
		CurrentValue: value,
		PnL:          pnl,
		PnLPercent:   pct,
	}
}

// EnrichedPosition pairs a position with its live valuation and market status
// for read-side projections.
type EnrichedPosition struct {
	Position
	Valuation
	MarketStatus MarketStatus `json:"market_status"`
}

// ParticipantStats is a derived, read-only projection over a participant's
// positions across all markets.
type ParticipantStats struct {
	Participant    string  `json:"participant"`
	TotalWagered   float64 `json:"total_wagered"`
	OpenPositions  int     `json:"open_positions"`
	SettledMarkets int     `json:"settled_markets"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`
}
