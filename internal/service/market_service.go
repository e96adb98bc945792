// Package service contains the bet lifecycle controller and the read-side
// projection services. Services orchestrate the domain aggregates against the
// injected store and cache contracts; they hold no mutable state themselves.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kolwager/kolwager/internal/domain"
)

// resolveLockTTL bounds how long the distributed resolution lock is held.
const resolveLockTTL = 30 * time.Second

// Settler runs settlement for a terminal market. It is satisfied by
// SettlementService and declared locally so the controller does not depend on
// the concrete implementation.
type Settler interface {
	Settle(ctx context.Context, market domain.Market) (domain.Settlement, error)
}

// MarketService is the bet lifecycle controller: it orchestrates market
// creation, stake placement, and resolution against the market aggregate and
// the position ledger.
type MarketService struct {
	markets domain.MarketStore
	quotes  domain.QuoteCache
	bus     domain.SignalBus
	audit   domain.AuditStore
	locks   domain.LockManager
	settler Settler
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	quotes domain.QuoteCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	locks domain.LockManager,
	settler Settler,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		quotes:  quotes,
		bus:     bus,
		audit:   audit,
		locks:   locks,
		settler: settler,
		logger:  logger,
	}
}

// CreateMarket validates the market spec and persists a new active market.
func (s *MarketService) CreateMarket(ctx context.Context, spec domain.MarketSpec) (domain.Market, error) {
	market, err := domain.NewMarket(uuid.New().String(), spec, time.Now())
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: new market: %w", err)
	}

	if err := s.markets.Create(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}

	s.cacheQuote(ctx, market)
	s.publish(ctx, "markets", map[string]any{
		"event":     "market_created",
		"market_id": market.ID,
		"category":  string(market.Category),
		"end_time":  market.EndTime,
	})
	s.auditLog(ctx, "market_created", map[string]any{
		"market_id": market.ID,
		"creator":   market.Creator,
		"category":  string(market.Category),
		"yes_pool":  market.YesPool,
		"no_pool":   market.NoPool,
	})

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", market.ID),
		slog.String("category", string(market.Category)),
		slog.Float64("yes_pool", market.YesPool),
		slog.Float64("no_pool", market.NoPool),
	)

	return market, nil
}

// PlaceStake adds amount to the chosen side's pool and folds the granted
// shares into the participant's position for that side. Shares are priced at
// the pre-stake quote; the pool update and the position accumulation are one
// atomic unit, serialized per market by the store.
func (s *MarketService) PlaceStake(ctx context.Context, marketID, participant string, side domain.Side, amount float64) (domain.Market, domain.Position, error) {
	if participant == "" {
		return domain.Market{}, domain.Position{}, fmt.Errorf("market_service: %w: participant is required", domain.ErrInvalidInput)
	}

	now := time.Now()
	market, position, err := s.markets.PlaceStake(ctx, marketID, func(m *domain.Market) (domain.Position, error) {
		shares, err := m.AcceptStake(side, amount, now)
		if err != nil {
			return domain.Position{}, err
		}
		return domain.Position{
			ID:          uuid.New().String(),
			MarketID:    m.ID,
			Participant: participant,
			Side:        side,
			Amount:      amount,
			Shares:      shares,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		}, nil
	})
	if err != nil {
		return domain.Market{}, domain.Position{}, fmt.Errorf("market_service: place stake on %q: %w", marketID, err)
	}

	s.cacheQuote(ctx, market)
	s.publish(ctx, "stakes", map[string]any{
		"event":       "stake_placed",
		"market_id":   market.ID,
		"participant": participant,
		"side":        string(side),
		"amount":      amount,
		"quote":       market.Quote(),
	})
	s.auditLog(ctx, "stake_placed", map[string]any{
		"market_id":   market.ID,
		"participant": participant,
		"side":        string(side),
		"amount":      amount,
		"shares":      position.Shares,
	})

	s.logger.InfoContext(ctx, "market_service: stake placed",
		slog.String("market_id", market.ID),
		slog.String("participant", participant),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
		slog.Float64("yes_pool", market.YesPool),
		slog.Float64("no_pool", market.NoPool),
	)

	return market, position, nil
}

// ResolveMarket transitions the market to its terminal state and runs
// settlement exactly once. The distributed lock makes resolution mutually
// exclusive across instances; a held lock surfaces as a retryable error.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID string, outcome domain.Outcome) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, "resolve:"+marketID, resolveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Market{}, fmt.Errorf("market_service: resolve %q: %w", marketID, domain.ErrConflict)
		}
		return domain.Market{}, fmt.Errorf("market_service: resolve lock %q: %w", marketID, err)
	}
	defer unlock()

	now := time.Now()
	market, err := s.markets.Resolve(ctx, marketID, func(m *domain.Market) error {
		return m.Resolve(outcome, now)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve %q: %w", marketID, err)
	}

	settlement, err := s.settler.Settle(ctx, market)
	if err != nil {
		// The market is terminal either way; settlement is retried by the
		// next resolution-status read or an operator re-trigger.
		s.logger.ErrorContext(ctx, "market_service: settlement failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return market, fmt.Errorf("market_service: settle %q: %w", marketID, err)
	}

	s.cacheQuote(ctx, market)
	s.publish(ctx, "markets", map[string]any{
		"event":      "market_resolved",
		"market_id":  market.ID,
		"outcome":    string(outcome),
		"total_pot":  settlement.TotalPot,
		"refunded":   settlement.Refunded,
	})
	s.auditLog(ctx, "market_resolved", map[string]any{
		"market_id": market.ID,
		"outcome":   string(outcome),
		"total_pot": settlement.TotalPot,
		"payouts":   len(settlement.Payouts),
	})

	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.String("market_id", market.ID),
		slog.String("outcome", string(outcome)),
		slog.Float64("total_pot", settlement.TotalPot),
		slog.Int("payouts", len(settlement.Payouts)),
	)

	return market, nil
}

// GetMarket returns a single market by id.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	market, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}
	return market, nil
}

// ListActive returns active markets with pagination.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// GetPricing returns the current quote for a market, preferring the cache and
// falling back to the store. The quote is always consistent with the pools:
// stake placement refreshes the cache after every pool change.
func (s *MarketService) GetPricing(ctx context.Context, marketID string) (domain.Quote, error) {
	if q, err := s.quotes.GetQuote(ctx, marketID); err == nil {
		return q, nil
	}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market_service: pricing for %q: %w", marketID, err)
	}

	q := market.Quote()
	if err := s.quotes.SetQuote(ctx, marketID, q); err != nil {
		s.logger.WarnContext(ctx, "market_service: quote cache backfill failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
	return q, nil
}

// cacheQuote refreshes the cached quote for a market; failures are logged,
// never surfaced, since the store remains the source of truth. A failed
// write invalidates the entry so a stale quote is not served until TTL.
func (s *MarketService) cacheQuote(ctx context.Context, m domain.Market) {
	if err := s.quotes.SetQuote(ctx, m.ID, m.Quote()); err != nil {
		s.logger.WarnContext(ctx, "market_service: quote cache update failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		if err := s.quotes.Invalidate(ctx, m.ID); err != nil {
			s.logger.WarnContext(ctx, "market_service: quote cache invalidate failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// publish sends a JSON event on the signal bus; failures are logged only.
func (s *MarketService) publish(ctx context.Context, channel string, payload map[string]any) {
	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, channel, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog appends an audit entry; failures are logged only.
func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
