package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kolwager/kolwager/internal/domain"
)

// streamCap bounds each in-process stream ring so long-lived memory-mode
// deployments do not grow without limit.
const streamCap = 10000

// SignalBus is an in-process implementation of domain.SignalBus. Pub/Sub is
// fanned out over Go channels; streams are bounded slices with monotonically
// increasing IDs.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  uint64
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers payload to every subscriber of channel. Slow subscribers
// with full buffers are skipped rather than blocking the publisher. Sends
// happen under the mutex so an unsubscribing channel cannot be closed while
// a publisher still holds a reference to it.
func (sb *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for _, ch := range sb.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for channel. The returned channel is
// closed when the context is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()

		sb.mu.Lock()
		subs := sb.subs[channel]
		for i, c := range subs {
			if c == ch {
				sb.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
		sb.mu.Unlock()
	}()

	return ch, nil
}

// StreamAppend appends payload to the named stream, trimming the oldest
// entries once the stream exceeds its cap.
func (sb *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.nextID++
	entries := append(sb.streams[stream], domain.StreamMessage{
		ID:      fmt.Sprintf("%d-0", sb.nextID),
		Payload: payload,
	})
	if len(entries) > streamCap {
		entries = entries[len(entries)-streamCap:]
	}
	sb.streams[stream] = entries
	return nil
}

// StreamRead returns up to count messages appended after lastID. Use "0" or
// "0-0" to read from the beginning. The "$" cursor reads nothing, matching
// the new-messages-only semantics of the Redis implementation.
func (sb *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	entries := sb.streams[stream]
	if lastID == "$" {
		return nil, nil
	}

	start := 0
	if lastID != "0" && lastID != "0-0" {
		for i, e := range entries {
			if e.ID == lastID {
				start = i + 1
				break
			}
		}
	}

	end := start + count
	if count <= 0 || end > len(entries) {
		end = len(entries)
	}
	if start >= len(entries) {
		return nil, nil
	}

	out := make([]domain.StreamMessage, end-start)
	copy(out, entries[start:end])
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
