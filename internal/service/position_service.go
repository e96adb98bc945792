package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kolwager/kolwager/internal/domain"
)

// PositionService serves the read-side projections over the position ledger:
// enriched positions with live valuations and derived participant statistics.
type PositionService struct {
	positions domain.PositionStore
	markets   domain.MarketStore
	logger    *slog.Logger
}

// NewPositionService creates a PositionService with the given dependencies.
func NewPositionService(
	positions domain.PositionStore,
	markets domain.MarketStore,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		markets:   markets,
		logger:    logger,
	}
}

// ListForParticipant returns all of a participant's positions across all
// markets, each marked against its market's current quote.
func (s *PositionService) ListForParticipant(ctx context.Context, participant string) ([]domain.EnrichedPosition, error) {
	if participant == "" {
		return nil, fmt.Errorf("position_service: %w: participant is required", domain.ErrInvalidInput)
	}

	positions, err := s.positions.ListByParticipant(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("position_service: list for %q: %w", participant, err)
	}

	enriched := make([]domain.EnrichedPosition, 0, len(positions))
	markets := make(map[string]domain.Market, len(positions))

	for _, pos := range positions {
		market, ok := markets[pos.MarketID]
		if !ok {
			market, err = s.markets.GetByID(ctx, pos.MarketID)
			if err != nil {
				s.logger.WarnContext(ctx, "position_service: market lookup failed",
					slog.String("market_id", pos.MarketID),
					slog.String("error", err.Error()),
				)
				continue
			}
			markets[pos.MarketID] = market
		}

		enriched = append(enriched, domain.EnrichedPosition{
			Position:     pos,
			Valuation:    pos.ValueAt(market.Quote()),
			MarketStatus: market.Status,
		})
	}

	return enriched, nil
}

// Stats computes a participant's aggregate exposure and record. Everything
// here is derived from the ledger and market outcomes; nothing is stored.
func (s *PositionService) Stats(ctx context.Context, participant string) (domain.ParticipantStats, error) {
	if participant == "" {
		return domain.ParticipantStats{}, fmt.Errorf("position_service: %w: participant is required", domain.ErrInvalidInput)
	}

	positions, err := s.positions.ListByParticipant(ctx, participant)
	if err != nil {
		return domain.ParticipantStats{}, fmt.Errorf("position_service: stats for %q: %w", participant, err)
	}

	stats := domain.ParticipantStats{Participant: participant}
	markets := make(map[string]domain.Market, len(positions))

	for _, pos := range positions {
		stats.TotalWagered += pos.Amount

		market, ok := markets[pos.MarketID]
		if !ok {
			market, err = s.markets.GetByID(ctx, pos.MarketID)
			if err != nil {
				continue
			}
			markets[pos.MarketID] = market
		}

		switch market.Status {
		case domain.MarketStatusActive:
			stats.OpenPositions++
		case domain.MarketStatusResolved:
			stats.SettledMarkets++
			if market.Outcome != nil && string(pos.Side) == string(*market.Outcome) {
				stats.Wins++
			}
		case domain.MarketStatusCancelled:
			// Refunded positions count toward neither wins nor losses.
		}
	}

	if stats.SettledMarkets > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.SettledMarkets)
	}

	return stats, nil
}
