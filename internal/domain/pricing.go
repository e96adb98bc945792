package domain

// Quote is the pair of complementary outcome prices implied by the two pools.
// Prices are probabilities in [0,1] and always sum to 1. All internal
// arithmetic stays on the 0-1 scale; Percent is the single conversion point
// for display.
type Quote struct {
	Yes float64 `json:"yes"`
	No  float64 `json:"no"`
}

// PriceQuote derives the outcome prices from the two pool magnitudes.
// priceYes = yesPool / (yesPool + noPool). A market with zero total liquidity
// quotes both sides at exactly 0.5; this is the defined degenerate-state
// policy, not a division fault.
func PriceQuote(yesPool, noPool float64) Quote {
	total := yesPool + noPool
	if total == 0 {
		return Quote{Yes: 0.5, No: 0.5}
	}
	yes := yesPool / total
	return Quote{Yes: yes, No: 1 - yes}
}

// Side returns the price of the given side.
func (q Quote) Side(s Side) float64 {
	if s == SideYes {
		return q.Yes
	}
	return q.No
}

// Percent returns the quote on the 0-100 display scale.
func (q Quote) Percent() Quote {
	return Quote{Yes: q.Yes * 100, No: q.No * 100}
}
