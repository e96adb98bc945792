package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolwager/kolwager/internal/domain"
)

func newStores() (*MarketStore, *PositionStore) {
	positions := NewPositionStore()
	return NewMarketStore(positions), positions
}

func activeMarket(id string, createdAt time.Time) domain.Market {
	return domain.Market{
		ID:        id,
		Title:     "m-" + id,
		Category:  domain.CategoryOther,
		Creator:   "alice",
		YesPool:   10,
		NoPool:    10,
		Status:    domain.MarketStatusActive,
		EndTime:   createdAt.Add(24 * time.Hour),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateAndGet(t *testing.T) {
	markets, _ := newStores()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, markets.Create(ctx, activeMarket("m1", now)))

	got, err := markets.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)

	err = markets.Create(ctx, activeMarket("m1", now))
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = markets.GetByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListActiveOrderAndPagination(t *testing.T) {
	markets, _ := newStores()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, markets.Create(ctx, activeMarket(id, base.Add(time.Duration(i)*time.Minute))))
	}

	resolved := activeMarket("m4", base.Add(3*time.Minute))
	require.NoError(t, markets.Create(ctx, resolved))
	_, err := markets.Resolve(ctx, "m4", func(m *domain.Market) error {
		return m.Resolve(domain.OutcomeYes, base.Add(4*time.Minute))
	})
	require.NoError(t, err)

	list, err := markets.ListActive(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "m3", list[0].ID, "newest first")

	list, err = markets.ListActive(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", list[0].ID)

	count, err := markets.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestPlaceStakeAccumulatesPosition(t *testing.T) {
	markets, positions := newStores()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, markets.Create(ctx, activeMarket("m1", now)))

	stake := func(amount float64) (domain.Market, domain.Position) {
		m, p, err := markets.PlaceStake(ctx, "m1", func(m *domain.Market) (domain.Position, error) {
			shares, err := m.AcceptStake(domain.SideYes, amount, now)
			if err != nil {
				return domain.Position{}, err
			}
			return domain.Position{
				ID:          "p-" + m.ID,
				MarketID:    m.ID,
				Participant: "bob",
				Side:        domain.SideYes,
				Amount:      amount,
				Shares:      shares,
				CreatedAt:   now,
				UpdatedAt:   now,
			}, nil
		})
		require.NoError(t, err)
		return m, p
	}

	_, p := stake(5)
	assert.Equal(t, 5.0, p.Amount)

	m, p := stake(5)
	assert.Equal(t, 10.0, p.Amount, "second stake folds into the same position")
	assert.Equal(t, 20.0, m.YesPool)

	got, err := positions.Get(ctx, "m1", "bob", domain.SideYes)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Amount)
}

func TestPlaceStakeErrorCommitsNothing(t *testing.T) {
	markets, positions := newStores()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, markets.Create(ctx, activeMarket("m1", now)))

	_, _, err := markets.PlaceStake(ctx, "m1", func(m *domain.Market) (domain.Position, error) {
		_, err := m.AcceptStake(domain.SideYes, -1, now)
		return domain.Position{}, err
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := markets.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.YesPool)

	_, err = positions.Get(ctx, "m1", "bob", domain.SideYes)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListSettledBefore(t *testing.T) {
	markets, _ := newStores()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, markets.Create(ctx, activeMarket(id, base)))
		resolvedAt := base.Add(time.Duration(i) * time.Hour)
		_, err := markets.Resolve(ctx, id, func(m *domain.Market) error {
			return m.Resolve(domain.OutcomeNo, resolvedAt)
		})
		require.NoError(t, err)
	}
	require.NoError(t, markets.Create(ctx, activeMarket("open", base)))

	settled, err := markets.ListSettledBefore(ctx, base.Add(90*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, settled, 2)
	assert.Equal(t, "m1", settled[0].ID, "oldest first")
	assert.Equal(t, "m2", settled[1].ID)

	settled, err = markets.ListSettledBefore(ctx, base.Add(24*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, settled, 1)
}

func TestSettlementClaimOnce(t *testing.T) {
	store := NewSettlementStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.Settlement{
		ID:       "s1",
		MarketID: "m1",
		Outcome:  domain.OutcomeYes,
		TotalPot: 20,
		Payouts: []domain.Payout{
			{Participant: "bob", Side: domain.SideYes, Shares: 10, Staked: 5, Amount: 20},
		},
	}))

	err := store.Create(ctx, domain.Settlement{ID: "s2", MarketID: "m1"})
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	amount, err := store.Claim(ctx, "m1", "bob", domain.SideYes)
	require.NoError(t, err)
	assert.Equal(t, 20.0, amount)

	_, err = store.Claim(ctx, "m1", "bob", domain.SideYes)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = store.Claim(ctx, "m1", "nobody", domain.SideYes)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
