package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kolwager/kolwager/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL. The
// UNIQUE constraint on settlements.market_id is what makes settlement
// single-shot even under concurrent settlers.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Create records the settlement and its payouts in one transaction. A second
// settlement for the same market fails with ErrAlreadySettled.
func (s *SettlementStore) Create(ctx context.Context, st domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin settlement tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO settlements (id, market_id, outcome, total_pot, refunded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.MarketID, string(st.Outcome), st.TotalPot, st.Refunded, st.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create settlement for %s: %w", st.MarketID, domain.ErrAlreadySettled)
		}
		return storeErr("create settlement "+st.MarketID, err)
	}

	for _, p := range st.Payouts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payouts (settlement_id, market_id, participant, side, shares, staked, amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			st.ID, st.MarketID, p.Participant, string(p.Side), p.Shares, p.Staked, p.Amount,
		); err != nil {
			return storeErr("create payout "+st.MarketID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit settlement tx", err)
	}
	return nil
}

// GetByMarket retrieves a settlement and its payouts.
func (s *SettlementStore) GetByMarket(ctx context.Context, marketID string) (domain.Settlement, error) {
	var st domain.Settlement
	var outcome string

	err := s.pool.QueryRow(ctx,
		`SELECT id, market_id, outcome, total_pot, refunded, created_at
		 FROM settlements WHERE market_id = $1`, marketID,
	).Scan(&st.ID, &st.MarketID, &outcome, &st.TotalPot, &st.Refunded, &st.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Settlement{}, domain.ErrNotFound
		}
		return domain.Settlement{}, storeErr("get settlement "+marketID, err)
	}
	st.Outcome = domain.Outcome(outcome)

	rows, err := s.pool.Query(ctx,
		`SELECT participant, side, shares, staked, amount, claimed
		 FROM payouts WHERE market_id = $1 ORDER BY participant, side`, marketID)
	if err != nil {
		return domain.Settlement{}, storeErr("list payouts "+marketID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Payout
		var side string
		if err := rows.Scan(&p.Participant, &side, &p.Shares, &p.Staked, &p.Amount, &p.Claimed); err != nil {
			return domain.Settlement{}, storeErr("scan payout "+marketID, err)
		}
		p.Side = domain.Side(side)
		st.Payouts = append(st.Payouts, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Settlement{}, storeErr("list payouts rows "+marketID, err)
	}

	return st, nil
}

// Claim flips one payout to claimed and returns its amount. The conditional
// UPDATE guarantees a payout is paid at most once.
func (s *SettlementStore) Claim(ctx context.Context, marketID, participant string, side domain.Side) (float64, error) {
	var amount float64
	err := s.pool.QueryRow(ctx,
		`UPDATE payouts SET claimed = TRUE, claimed_at = NOW()
		 WHERE market_id = $1 AND participant = $2 AND side = $3 AND claimed = FALSE
		 RETURNING amount`,
		marketID, participant, string(side),
	).Scan(&amount)
	if err == nil {
		return amount, nil
	}
	if err != pgx.ErrNoRows {
		return 0, storeErr("claim payout "+marketID, err)
	}

	// No row updated: distinguish "already claimed" from "no such payout".
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM payouts WHERE market_id = $1 AND participant = $2 AND side = $3)`,
		marketID, participant, string(side),
	).Scan(&exists); err != nil {
		return 0, storeErr("check payout "+marketID, err)
	}
	if exists {
		return 0, domain.ErrAlreadyClaimed
	}
	return 0, domain.ErrNotFound
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
