package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kolwager/kolwager/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Per-market
// serialization is provided by SELECT ... FOR UPDATE: a stake or resolution
// transaction holds the market row lock until commit, so concurrent
// operations on the same market queue instead of racing.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, title, description, category, resolution_criteria,
	resolution_source, creator, yes_pool, no_pool, status, outcome,
	end_time, resolved_at, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, category string
	var outcome *string

	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &category, &m.ResolutionCriteria,
		&m.ResolutionSource, &m.Creator, &m.YesPool, &m.NoPool, &status, &outcome,
		&m.EndTime, &m.ResolvedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Status = domain.MarketStatus(status)
	m.Category = domain.Category(category)
	if outcome != nil {
		o := domain.Outcome(*outcome)
		m.Outcome = &o
	}
	return m, nil
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, title, description, category, resolution_criteria,
			resolution_source, creator, yes_pool, no_pool, status, outcome,
			end_time, resolved_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Title, m.Description, string(m.Category), m.ResolutionCriteria,
		m.ResolutionSource, m.Creator, m.YesPool, m.NoPool, string(m.Status), outcomeStr(m.Outcome),
		m.EndTime, m.ResolvedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create market %s: %w", m.ID, domain.ErrConflict)
		}
		return storeErr("create market "+m.ID, err)
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, storeErr("get market "+id, err)
	}
	return m, nil
}

// ListActive returns active markets with pagination and optional time filtering.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list active markets", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, storeErr("scan active market", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list active markets rows", err)
	}
	return markets, nil
}

// ListSettledBefore returns terminal markets resolved before the cutoff,
// oldest first. Used by the archiver.
func (s *MarketStore) ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status <> 'active' AND resolved_at < $1
		 ORDER BY resolved_at ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, storeErr("list settled markets", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, storeErr("scan settled market", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list settled markets rows", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, storeErr("count markets", err)
	}
	return count, nil
}

// PlaceStake applies fn to the row-locked market and writes the updated
// pools together with the position accumulation in the same transaction.
func (s *MarketStore) PlaceStake(ctx context.Context, marketID string, fn func(m *domain.Market) (domain.Position, error)) (domain.Market, domain.Position, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, domain.Position{}, storeErr("begin stake tx", err)
	}
	defer tx.Rollback(ctx)

	market, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, domain.Position{}, err
	}

	delta, err := fn(&market)
	if err != nil {
		return domain.Market{}, domain.Position{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE markets SET yes_pool = $2, no_pool = $3, updated_at = $4 WHERE id = $1`,
		market.ID, market.YesPool, market.NoPool, market.UpdatedAt,
	); err != nil {
		return domain.Market{}, domain.Position{}, storeErr("update market pools "+marketID, err)
	}

	// Fold the stake delta into the (market, participant, side) position,
	// keeping the first-stake id and creation time on conflict.
	row := tx.QueryRow(ctx, `
		INSERT INTO positions (id, market_id, participant, side, amount, shares, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (market_id, participant, side) DO UPDATE SET
			amount     = positions.amount + EXCLUDED.amount,
			shares     = positions.shares + EXCLUDED.shares,
			updated_at = EXCLUDED.updated_at
		RETURNING id, market_id, participant, side, amount, shares, created_at, updated_at`,
		delta.ID, delta.MarketID, delta.Participant, string(delta.Side),
		delta.Amount, delta.Shares, delta.CreatedAt, delta.UpdatedAt,
	)
	position, err := scanPosition(row)
	if err != nil {
		return domain.Market{}, domain.Position{}, storeErr("upsert position "+marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, domain.Position{}, storeErr("commit stake tx", err)
	}
	return market, position, nil
}

// Resolve applies fn to the row-locked market and persists the terminal state.
func (s *MarketStore) Resolve(ctx context.Context, marketID string, fn func(m *domain.Market) error) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, storeErr("begin resolve tx", err)
	}
	defer tx.Rollback(ctx)

	market, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, err
	}

	if err := fn(&market); err != nil {
		return domain.Market{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE markets SET status = $2, outcome = $3, resolved_at = $4, updated_at = $5 WHERE id = $1`,
		market.ID, string(market.Status), outcomeStr(market.Outcome), market.ResolvedAt, market.UpdatedAt,
	); err != nil {
		return domain.Market{}, storeErr("update market status "+marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, storeErr("commit resolve tx", err)
	}
	return market, nil
}

// lockMarket reads the market row under FOR UPDATE inside tx.
func lockMarket(ctx context.Context, tx pgx.Tx, marketID string) (domain.Market, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, storeErr("lock market "+marketID, err)
	}
	return m, nil
}

// outcomeStr converts an optional outcome to a nullable column value.
func outcomeStr(o *domain.Outcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
