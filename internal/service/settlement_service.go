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

// settlementStream is the durable journal of settlement records.
const settlementStream = "stream:settlements"

// SettlementService converts a terminal market's positions into claimable
// payouts, exactly once per market, and serves claims.
type SettlementService struct {
	settlements domain.SettlementStore
	positions   domain.PositionStore
	bus         domain.SignalBus
	audit       domain.AuditStore
	logger      *slog.Logger
}

// NewSettlementService creates a SettlementService with the given dependencies.
func NewSettlementService(
	settlements domain.SettlementStore,
	positions domain.PositionStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		settlements: settlements,
		positions:   positions,
		bus:         bus,
		audit:       audit,
		logger:      logger,
	}
}

// Settle computes and records the settlement for a terminal market. It is
// idempotent: if a settlement already exists (from a previous call or a
// concurrent instance) the existing record is returned unchanged.
func (s *SettlementService) Settle(ctx context.Context, market domain.Market) (domain.Settlement, error) {
	existing, err := s.settlements.GetByMarket(ctx, market.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Settlement{}, fmt.Errorf("settlement_service: check existing for %q: %w", market.ID, err)
	}

	positions, err := s.positions.ListByMarket(ctx, market.ID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: list positions for %q: %w", market.ID, err)
	}

	settlement, err := domain.ComputeSettlement(uuid.New().String(), market, positions, time.Now())
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: compute for %q: %w", market.ID, err)
	}

	if err := s.settlements.Create(ctx, settlement); err != nil {
		// Lost the race against another settler; the winner's numbers are
		// identical by construction.
		if errors.Is(err, domain.ErrAlreadySettled) {
			return s.settlements.GetByMarket(ctx, market.ID)
		}
		return domain.Settlement{}, fmt.Errorf("settlement_service: create for %q: %w", market.ID, err)
	}

	record, _ := json.Marshal(settlement)
	if err := s.bus.StreamAppend(ctx, settlementStream, record); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: journal append failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.Publish(ctx, "settlements", record); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: publish failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.audit.Log(ctx, "market_settled", map[string]any{
		"market_id": market.ID,
		"outcome":   string(settlement.Outcome),
		"total_pot": settlement.TotalPot,
		"refunded":  settlement.Refunded,
		"payouts":   len(settlement.Payouts),
	}); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "settlement_service: market settled",
		slog.String("market_id", market.ID),
		slog.String("outcome", string(settlement.Outcome)),
		slog.Float64("total_pot", settlement.TotalPot),
		slog.Bool("refunded", settlement.Refunded),
	)

	return settlement, nil
}

// GetByMarket returns the settlement recorded for a market.
func (s *SettlementService) GetByMarket(ctx context.Context, marketID string) (domain.Settlement, error) {
	settlement, err := s.settlements.GetByMarket(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: get for %q: %w", marketID, err)
	}
	return settlement, nil
}

// Claim pays out a settled position at most once and returns the amount.
func (s *SettlementService) Claim(ctx context.Context, marketID, participant string, side domain.Side) (float64, error) {
	if participant == "" {
		return 0, fmt.Errorf("settlement_service: %w: participant is required", domain.ErrInvalidInput)
	}
	if !side.Valid() {
		return 0, fmt.Errorf("settlement_service: %w: unknown side %q", domain.ErrInvalidInput, side)
	}

	amount, err := s.settlements.Claim(ctx, marketID, participant, side)
	if err != nil {
		return 0, fmt.Errorf("settlement_service: claim %q/%q/%s: %w", marketID, participant, side, err)
	}

	if err := s.audit.Log(ctx, "payout_claimed", map[string]any{
		"market_id":   marketID,
		"participant": participant,
		"side":        string(side),
		"amount":      amount,
	}); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "settlement_service: payout claimed",
		slog.String("market_id", marketID),
		slog.String("participant", participant),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
	)

	return amount, nil
}
