package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceQuote(t *testing.T) {
	cases := []struct {
		name    string
		yesPool float64
		noPool  float64
		wantYes float64
	}{
		{"balanced", 10, 10, 0.5},
		{"yes heavy", 75, 25, 0.75},
		{"no heavy", 20, 80, 0.2},
		{"tiny pools", 0.001, 0.003, 0.25},
		{"one-sided yes", 10, 0, 1},
		{"one-sided no", 0, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := PriceQuote(tc.yesPool, tc.noPool)
			assert.InDelta(t, tc.wantYes, q.Yes, 1e-12)
			assert.InDelta(t, 1-tc.wantYes, q.No, 1e-12)
			assert.InDelta(t, 1.0, q.Yes+q.No, 1e-9, "prices must sum to one")
		})
	}
}

func TestPriceQuoteZeroLiquidity(t *testing.T) {
	q := PriceQuote(0, 0)
	require.Equal(t, 0.5, q.Yes)
	require.Equal(t, 0.5, q.No)
}

func TestQuoteSide(t *testing.T) {
	q := Quote{Yes: 0.7, No: 0.3}
	assert.Equal(t, 0.7, q.Side(SideYes))
	assert.Equal(t, 0.3, q.Side(SideNo))
}

func TestQuotePercent(t *testing.T) {
	p := Quote{Yes: 0.42, No: 0.58}.Percent()
	assert.InDelta(t, 42.0, p.Yes, 1e-9)
	assert.InDelta(t, 58.0, p.No, 1e-9)
}
