package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"matchcore/internal/constants"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"

	"github.com/rs/zerolog"
)

// MemoryBus is an in-process bus for single-binary deployments and tests.
// Messages for topics nobody subscribed to are dropped.
type MemoryBus struct {
	dispatcher

	mu       sync.RWMutex
	handlers map[string]Handler
	dead     []DeadLetter

	queue  chan memoryMessage
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type memoryMessage struct {
	topic      string
	body       []byte
	deliveries int64
}

func NewMemoryBus(opts Options, m *metrics.Metrics, logger zerolog.Logger) *MemoryBus {
	return &MemoryBus{
		dispatcher: dispatcher{opts: opts, metrics: m, logger: logger.With().Str("bus", "memory").Logger()},
		handlers:   make(map[string]Handler),
		queue:      make(chan memoryMessage, constants.BusMemoryBuffer),
	}
}

func (b *MemoryBus) Subscribe(topic events.Type, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[string(topic)]; ok {
		return fmt.Errorf("topic %s already has a handler", topic)
	}
	b.handlers[string(topic)] = h
	return nil
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, body []byte) error {
	b.mu.RLock()
	_, ok := b.handlers[topic]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug().Str("topic", topic).Msg("no subscriber, dropping message")
		return nil
	}

	select {
	case b.queue <- memoryMessage{topic: topic, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return failure.Transient(nil, "memory bus queue full (%d)", cap(b.queue))
	}
}

func (b *MemoryBus) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < constants.BusMemoryWorkers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-b.queue:
					b.handle(ctx, msg)
				}
			}
		}()
	}
	b.logger.Info().Int("workers", constants.BusMemoryWorkers).Msg("memory bus started")
	return nil
}

func (b *MemoryBus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info().Msg("memory bus stopped")
}

// DeadLetters returns a snapshot of rejected messages.
func (b *MemoryBus) DeadLetters() []DeadLetter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DeadLetter, len(b.dead))
	copy(out, b.dead)
	return out
}

func (b *MemoryBus) handle(ctx context.Context, msg memoryMessage) {
	b.mu.RLock()
	h := b.handlers[msg.topic]
	b.mu.RUnlock()

	msg.deliveries++
	o, reason := b.deliver(ctx, msg.topic, msg.body, h)
	switch o {
	case outcomeDeadLetter:
		b.deadLetter(msg, reason)
	case outcomeRetry:
		if msg.deliveries >= b.opts.MaxDeliveries {
			b.deadLetter(msg, fmt.Sprintf("gave up after %d deliveries", msg.deliveries))
			return
		}
		b.redeliver(ctx, msg)
	}
}

func (b *MemoryBus) redeliver(ctx context.Context, msg memoryMessage) {
	delay := b.opts.RetryBase * time.Duration(msg.deliveries)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			select {
			case b.queue <- msg:
			case <-ctx.Done():
			}
		}
	}()
}

func (b *MemoryBus) deadLetter(msg memoryMessage, reason string) {
	b.mu.Lock()
	b.dead = append(b.dead, DeadLetter{Topic: msg.topic, Body: msg.body, Reason: reason, At: deadLetterAt()})
	b.mu.Unlock()
	b.logger.Error().Str("topic", msg.topic).Str("reason", reason).Msg("message dead-lettered")
}
