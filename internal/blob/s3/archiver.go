package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kolwager/kolwager/internal/domain"
)

// archiveBatchSize caps how many markets a single archive pass processes.
const archiveBatchSize = 100

// Archiver periodically exports settled markets, their positions, and their
// settlement records to object storage as JSONL. Uploads are keyed by market
// ID so re-running a pass overwrites rather than duplicates.
type Archiver struct {
	markets     domain.MarketStore
	positions   domain.PositionStore
	settlements domain.SettlementStore
	writer      *Writer
	retention   time.Duration
	logger      *slog.Logger
}

// NewArchiver creates an Archiver. Markets resolved longer than retention ago
// are eligible for archival.
func NewArchiver(
	markets domain.MarketStore,
	positions domain.PositionStore,
	settlements domain.SettlementStore,
	writer *Writer,
	retention time.Duration,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		markets:     markets,
		positions:   positions,
		settlements: settlements,
		writer:      writer,
		retention:   retention,
		logger:      logger,
	}
}

// archiveRecord is one JSONL line in an archived market object.
type archiveRecord struct {
	Kind       string             `json:"kind"` // market, position, settlement
	Market     *domain.Market     `json:"market,omitempty"`
	Position   *domain.Position   `json:"position,omitempty"`
	Settlement *domain.Settlement `json:"settlement,omitempty"`
}

// RunLoop archives eligible markets once per interval until the context is
// cancelled. Errors are logged, not returned, so one failed pass does not
// stop the loop.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.ArchiveSettled(ctx); err != nil {
				a.logger.WarnContext(ctx, "archiver: pass failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "archiver: pass complete",
					slog.Int("markets", n),
				)
			}
		}
	}
}

// ArchiveSettled uploads one archive object per market resolved before the
// retention cutoff. It returns the number of markets archived.
func (a *Archiver) ArchiveSettled(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	markets, err := a.markets.ListSettledBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list settled markets: %w", err)
	}

	archived := 0
	for _, m := range markets {
		if err := a.archiveMarket(ctx, m); err != nil {
			a.logger.WarnContext(ctx, "archiver: market archive failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		archived++
	}

	return archived, nil
}

// archiveMarket builds the JSONL payload for one market and uploads it.
func (a *Archiver) archiveMarket(ctx context.Context, m domain.Market) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	if err := enc.Encode(archiveRecord{Kind: "market", Market: &m}); err != nil {
		return fmt.Errorf("s3blob: encode market %s: %w", m.ID, err)
	}

	positions, err := a.positions.ListByMarket(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("s3blob: list positions for %s: %w", m.ID, err)
	}
	for i := range positions {
		if err := enc.Encode(archiveRecord{Kind: "position", Position: &positions[i]}); err != nil {
			return fmt.Errorf("s3blob: encode position: %w", err)
		}
	}

	settlement, err := a.settlements.GetByMarket(ctx, m.ID)
	switch {
	case err == nil:
		if err := enc.Encode(archiveRecord{Kind: "settlement", Settlement: &settlement}); err != nil {
			return fmt.Errorf("s3blob: encode settlement: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		// A market resolved without a settlement record is unusual but not
		// fatal for archival.
	default:
		return fmt.Errorf("s3blob: get settlement for %s: %w", m.ID, err)
	}

	key := archiveKey(m)
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return err
	}

	return nil
}

// archiveKey builds the object key for a market archive, partitioned by
// resolution month.
func archiveKey(m domain.Market) string {
	t := time.Now().UTC()
	if m.ResolvedAt != nil {
		t = m.ResolvedAt.UTC()
	}
	return fmt.Sprintf("archive/markets/%04d/%02d/%s.jsonl", t.Year(), t.Month(), m.ID)
}
