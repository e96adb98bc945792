package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kolwager/kolwager/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each market's
// quote is stored at "quote:{marketID}" with fields "yes", "no", and "ts".
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. A zero ttl
// means cached quotes never expire; they are overwritten on every pool
// change and explicitly invalidated on resolution.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(marketID string) string {
	return "quote:" + marketID
}

// SetQuote stores the latest quote for a market.
func (qc *QuoteCache) SetQuote(ctx context.Context, marketID string, q domain.Quote) error {
	key := quoteKey(marketID)
	fields := map[string]interface{}{
		"yes": strconv.FormatFloat(q.Yes, 'f', -1, 64),
		"no":  strconv.FormatFloat(q.No, 'f', -1, 64),
		"ts":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", marketID, err)
	}
	return nil
}

// GetQuote retrieves the latest cached quote for a market. It returns
// domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) GetQuote(ctx context.Context, marketID string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(marketID)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	yes, err := strconv.ParseFloat(vals["yes"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote yes %s: %w", marketID, err)
	}
	no, err := strconv.ParseFloat(vals["no"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote no %s: %w", marketID, err)
	}

	return domain.Quote{Yes: yes, No: no}, nil
}

// Invalidate drops the cached quote for a market.
func (qc *QuoteCache) Invalidate(ctx context.Context, marketID string) error {
	if err := qc.rdb.Del(ctx, quoteKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate quote %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
