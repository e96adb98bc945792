package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kolwager/kolwager/internal/domain"
)

// watchChannels are the signal-bus channels the watcher follows.
var watchChannels = []string{"markets", "settlements"}

// Watcher subscribes to market lifecycle events on the signal bus and turns
// them into operator notifications.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher that forwards bus events to the notifier.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// busEvent is the envelope the services publish on the bus.
type busEvent struct {
	Event    string  `json:"event"`
	MarketID string  `json:"market_id"`
	Outcome  string  `json:"outcome"`
	Category string  `json:"category"`
	TotalPot float64 `json:"total_pot"`
	Refunded bool    `json:"refunded"`
}

// Run consumes bus events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, ch := range watchChannels {
		msgCh, err := w.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go w.consume(ctx, ch, msgCh)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (w *Watcher) consume(ctx context.Context, channel string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				return
			}
			w.handle(ctx, channel, data)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, channel string, data []byte) {
	var ev busEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}

	// The settlements channel carries raw settlement records with no event
	// field.
	if ev.Event == "" {
		if channel != "settlements" || ev.MarketID == "" {
			return
		}
		ev.Event = "market_settled"
	}

	var title, message string
	switch ev.Event {
	case "market_created":
		title = "Market opened"
		message = fmt.Sprintf("Market %s (%s) is open for stakes.", ev.MarketID, ev.Category)
	case "market_resolved":
		title = "Market resolved"
		message = fmt.Sprintf("Market %s resolved %s, pot %.2f.", ev.MarketID, ev.Outcome, ev.TotalPot)
	case "market_settled":
		title = "Market settled"
		if ev.Refunded {
			message = fmt.Sprintf("Market %s settled with full refunds.", ev.MarketID)
		} else {
			message = fmt.Sprintf("Market %s settled, pot %.2f distributed.", ev.MarketID, ev.TotalPot)
		}
	default:
		return
	}

	if err := w.notifier.Notify(ctx, ev.Event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification failed",
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)
	}
}
