package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolwager/kolwager/internal/domain"
)

func TestListForParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	market, err := env.markets.CreateMarket(ctx, testSpec())
	require.NoError(t, err)

	_, _, err = env.markets.PlaceStake(ctx, market.ID, "alice", domain.SideYes, 5)
	require.NoError(t, err)
	_, _, err = env.markets.PlaceStake(ctx, market.ID, "alice", domain.SideNo, 2)
	require.NoError(t, err)

	enriched, err := env.positions.ListForParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, enriched, 2)

	for _, p := range enriched {
		assert.Equal(t, market.ID, p.MarketID)
		assert.Equal(t, domain.MarketStatusActive, p.MarketStatus)
		assert.Greater(t, p.CurrentValue, 0.0)
	}
}

func TestListForParticipantEmpty(t *testing.T) {
	env := newTestEnv(t)

	enriched, err := env.positions.ListForParticipant(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, enriched)

	_, err = env.positions.ListForParticipant(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Market 1: alice wins on yes.
	won, err := env.markets.CreateMarket(ctx, testSpec())
	require.NoError(t, err)
	_, _, err = env.markets.PlaceStake(ctx, won.ID, "alice", domain.SideYes, 10)
	require.NoError(t, err)
	_, err = env.markets.ResolveMarket(ctx, won.ID, domain.OutcomeYes)
	require.NoError(t, err)

	// Market 2: alice loses on no.
	lost, err := env.markets.CreateMarket(ctx, testSpec())
	require.NoError(t, err)
	_, _, err = env.markets.PlaceStake(ctx, lost.ID, "alice", domain.SideNo, 4)
	require.NoError(t, err)
	_, err = env.markets.ResolveMarket(ctx, lost.ID, domain.OutcomeYes)
	require.NoError(t, err)

	// Market 3: still open.
	open, err := env.markets.CreateMarket(ctx, testSpec())
	require.NoError(t, err)
	_, _, err = env.markets.PlaceStake(ctx, open.ID, "alice", domain.SideYes, 6)
	require.NoError(t, err)

	stats, err := env.positions.Stats(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", stats.Participant)
	assert.InDelta(t, 20.0, stats.TotalWagered, 1e-9)
	assert.Equal(t, 1, stats.OpenPositions)
	assert.Equal(t, 2, stats.SettledMarkets)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
}

func TestStatsCancelledExcluded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	market, err := env.markets.CreateMarket(ctx, testSpec())
	require.NoError(t, err)
	_, _, err = env.markets.PlaceStake(ctx, market.ID, "alice", domain.SideYes, 5)
	require.NoError(t, err)
	_, err = env.markets.ResolveMarket(ctx, market.ID, domain.OutcomeCancelled)
	require.NoError(t, err)

	stats, err := env.positions.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SettledMarkets)
	assert.Equal(t, 0, stats.Wins)
	assert.Equal(t, 0.0, stats.WinRate)
}
