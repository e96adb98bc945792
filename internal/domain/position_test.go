package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueAt(t *testing.T) {
	p := Position{Side: SideYes, Amount: 10, Shares: 25}
	v := p.ValueAt(Quote{Yes: 0.6, No: 0.4})

	assert.Equal(t, 0.6, v.CurrentPrice)
	assert.InDelta(t, 15.0, v.CurrentValue, 1e-9)
	assert.InDelta(t, 5.0, v.PnL, 1e-9)
	assert.InDelta(t, 50.0, v.PnLPercent, 1e-9)
}

func TestValueAtLosingSide(t *testing.T) {
	p := Position{Side: SideNo, Amount: 20, Shares: 30}
	v := p.ValueAt(Quote{Yes: 0.8, No: 0.2})

	assert.InDelta(t, 6.0, v.CurrentValue, 1e-9)
	assert.InDelta(t, -14.0, v.PnL, 1e-9)
	assert.InDelta(t, -70.0, v.PnLPercent, 1e-9)
}

func TestValueAtZeroStake(t *testing.T) {
	p := Position{Side: SideYes, Amount: 0, Shares: 0}
	v := p.ValueAt(Quote{Yes: 0.5, No: 0.5})

	assert.Equal(t, 0.0, v.PnL)
	assert.Equal(t, 0.0, v.PnLPercent)
}
