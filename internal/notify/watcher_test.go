package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachememory "github.com/kolwager/kolwager/internal/cache/memory"
	"github.com/kolwager/kolwager/internal/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherForwardsMarketEvents(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	bus := cachememory.NewSignalBus()
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, nil, logger)
	watcher := NewWatcher(bus, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// Give the subscriptions a moment to register.
	time.Sleep(50 * time.Millisecond)

	created, _ := json.Marshal(map[string]any{
		"event":     "market_created",
		"market_id": "mkt-1",
		"category":  "kol",
	})
	require.NoError(t, bus.Publish(ctx, "markets", created))

	waitFor(t, func() bool { return len(sender.titles()) == 1 })
	assert.Equal(t, "Market opened", sender.titles()[0])
}

func TestWatcherHandlesRawSettlementRecords(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	bus := cachememory.NewSignalBus()
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, nil, logger)
	watcher := NewWatcher(bus, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Settlement records are published as-is, with no event key.
	record, _ := json.Marshal(domain.Settlement{
		ID:       "set-1",
		MarketID: "mkt-1",
		Outcome:  domain.OutcomeYes,
		TotalPot: 30,
	})
	require.NoError(t, bus.Publish(ctx, "settlements", record))

	waitFor(t, func() bool { return len(sender.titles()) == 1 })
	assert.Equal(t, "Market settled", sender.titles()[0])
}

func TestNotifierEventFilter(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, []string{"market_resolved"}, logger)

	ctx := context.Background()
	require.NoError(t, notifier.Notify(ctx, "market_created", "t", "m"))
	assert.Empty(t, sender.titles(), "filtered event must not be delivered")

	require.NoError(t, notifier.Notify(ctx, "market_resolved", "t", "m"))
	assert.Len(t, sender.titles(), 1)
}

type failingSender struct{}

func (failingSender) Send(context.Context, string, string) error { return assert.AnError }
func (failingSender) Name() string                               { return "failing" }

func TestNotifierCollectsSenderErrors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	good := &recordingSender{}
	notifier := NewNotifier([]Sender{failingSender{}, good}, nil, logger)

	err := notifier.Notify(context.Background(), "market_created", "t", "m")
	require.Error(t, err)
	assert.Len(t, good.titles(), 1, "remaining senders still receive the notification")
}
