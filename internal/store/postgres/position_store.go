package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kolwager/kolwager/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. It is
// read-only: position writes happen inside MarketStore.PlaceStake so pools
// and the ledger never diverge.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `id, market_id, participant, side, amount, shares, created_at, updated_at`

// scanPosition scans a single position row into a domain.Position.
func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side string
	err := row.Scan(
		&p.ID, &p.MarketID, &p.Participant, &side,
		&p.Amount, &p.Shares, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	return p, nil
}

// Get retrieves the position for one (market, participant, side) key.
func (s *PositionStore) Get(ctx context.Context, marketID, participant string, side domain.Side) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE market_id = $1 AND participant = $2 AND side = $3`,
		marketID, participant, string(side))
	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, storeErr("get position", err)
	}
	return p, nil
}

// ListByMarket returns all positions on a market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	return s.list(ctx, "list positions by market",
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY created_at ASC`,
		marketID)
}

// ListByParticipant returns all of a participant's positions across markets.
func (s *PositionStore) ListByParticipant(ctx context.Context, participant string) ([]domain.Position, error) {
	return s.list(ctx, "list positions by participant",
		`SELECT `+positionCols+` FROM positions WHERE participant = $1 ORDER BY created_at DESC`,
		participant)
}

func (s *PositionStore) list(ctx context.Context, op, query string, arg any) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, storeErr(op+" scan", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op+" rows", err)
	}
	return positions, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
