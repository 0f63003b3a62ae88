package bus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"matchcore/internal/constants"
	"matchcore/internal/events"
	"matchcore/internal/metrics"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type RedisOptions struct {
	Options
	Group    string
	Consumer string
	// Block is the XREADGROUP block time. A negative value does not block.
	Block time.Duration
	// ClaimIdle is how long a message must sit unacked before another
	// consumer reclaims it.
	ClaimIdle time.Duration
}

// RedisBus maps each topic onto a stream consumed by one group per service.
// Unacked messages stay pending and are reclaimed once idle; messages that
// exceed MaxDeliveries move to the dead-letter stream.
type RedisBus struct {
	dispatcher

	client *redis.Client
	ropts  RedisOptions

	mu       sync.RWMutex
	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisBus(client *redis.Client, opts RedisOptions, m *metrics.Metrics, logger zerolog.Logger) *RedisBus {
	if opts.ClaimIdle == 0 {
		opts.ClaimIdle = constants.BusClaimIdle
	}
	return &RedisBus{
		dispatcher: dispatcher{
			opts:    opts.Options,
			metrics: m,
			logger:  logger.With().Str("bus", "redis").Str("group", opts.Group).Logger(),
		},
		client:   client,
		ropts:    opts,
		handlers: make(map[string]Handler),
	}
}

func consumerName(group string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = gonanoid.Must(8)
	}
	return fmt.Sprintf("%s-%s-%d", group, host, os.Getpid())
}

func streamKey(topic string) string {
	return constants.BusStreamPrefix + topic
}

func (b *RedisBus) Subscribe(topic events.Type, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[string(topic)]; ok {
		return fmt.Errorf("topic %s already has a handler", topic)
	}
	b.handlers[string(topic)] = h
	return nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, body []byte) error {
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]interface{}{constants.BusEnvelopeField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Start(ctx context.Context) error {
	if err := b.ensureGroups(ctx); err != nil {
		return err
	}

	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, topic := range b.topics() {
		b.wg.Add(2)
		go func() {
			defer b.wg.Done()
			b.consume(ctx, topic)
		}()
		go func() {
			defer b.wg.Done()
			b.reclaimLoop(ctx, topic)
		}()
	}

	b.logger.Info().Str("consumer", b.ropts.Consumer).Strs("topics", b.topics()).Msg("redis bus started")
	return nil
}

func (b *RedisBus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info().Msg("redis bus stopped")
}

func (b *RedisBus) topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		out = append(out, t)
	}
	return out
}

func (b *RedisBus) handler(topic string) Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[topic]
}

func (b *RedisBus) ensureGroups(ctx context.Context) error {
	for _, topic := range b.topics() {
		err := b.client.XGroupCreateMkStream(ctx, streamKey(topic), b.ropts.Group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create group %s on %s: %w", b.ropts.Group, topic, err)
		}
	}
	return nil
}

func (b *RedisBus) consume(ctx context.Context, topic string) {
	for ctx.Err() == nil {
		n, err := b.poll(ctx, topic)
		if err != nil && ctx.Err() == nil {
			b.logger.Error().Err(err).Str("topic", topic).Msg("stream read failed")
			sleep(ctx, b.opts.RetryBase)
			continue
		}
		if n == 0 && b.ropts.Block < 0 {
			sleep(ctx, b.opts.RetryBase)
		}
	}
}

// poll reads one batch of new messages for topic, handles them concurrently
// and returns how many it processed.
func (b *RedisBus) poll(ctx context.Context, topic string) (int, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.ropts.Group,
		Consumer: b.ropts.Consumer,
		Streams:  []string{streamKey(topic), ">"},
		Count:    constants.BusReadCount,
		Block:    b.ropts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(constants.BusRedisConcurrency)
	n := 0
	for _, s := range res {
		for _, msg := range s.Messages {
			g.Go(func() error {
				b.process(ctx, topic, msg)
				return nil
			})
			n++
		}
	}
	return n, g.Wait()
}

func (b *RedisBus) process(ctx context.Context, topic string, msg redis.XMessage) {
	body, _ := msg.Values[constants.BusEnvelopeField].(string)
	o, reason := b.deliver(ctx, topic, []byte(body), b.handler(topic))

	switch o {
	case outcomeAck:
		b.ack(ctx, topic, msg.ID)
	case outcomeDeadLetter:
		b.deadLetter(ctx, topic, msg.ID, body, reason)
	}
	// outcomeRetry leaves the entry pending for reclaim.
}

func (b *RedisBus) ack(ctx context.Context, topic, id string) {
	if err := b.client.XAck(ctx, streamKey(topic), b.ropts.Group, id).Err(); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Str("id", id).Msg("failed to ack message")
	}
}

func (b *RedisBus) deadLetter(ctx context.Context, topic, id, body, reason string) {
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(constants.BusDeadLetterTopic),
		Values: map[string]interface{}{
			"topic":                    topic,
			"source_id":                id,
			"reason":                   reason,
			"at":                       deadLetterAt().Format(time.RFC3339Nano),
			constants.BusEnvelopeField: body,
		},
	}).Err()
	if err != nil {
		// Left pending so the reclaim loop tries again.
		b.logger.Error().Err(err).Str("topic", topic).Str("id", id).Msg("failed to write dead letter")
		return
	}
	b.logger.Error().Str("topic", topic).Str("id", id).Str("reason", reason).Msg("message dead-lettered")
	b.ack(ctx, topic, id)
}

func (b *RedisBus) reclaimLoop(ctx context.Context, topic string) {
	ticker := time.NewTicker(constants.BusClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.reclaim(ctx, topic); err != nil && ctx.Err() == nil {
				b.logger.Error().Err(err).Str("topic", topic).Msg("reclaim failed")
			}
		}
	}
}

// reclaim takes over pending messages idle longer than ClaimIdle. Entries
// already delivered MaxDeliveries times are dead-lettered instead.
func (b *RedisBus) reclaim(ctx context.Context, topic string) error {
	stream := streamKey(topic)
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  b.ropts.Group,
		Start:  "-",
		End:    "+",
		Count:  constants.BusReadCount,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to list pending on %s: %w", topic, err)
	}

	var claim []string
	for _, p := range pending {
		if p.Idle < b.ropts.ClaimIdle {
			continue
		}
		if p.RetryCount >= b.opts.MaxDeliveries {
			body, err := b.body(ctx, stream, p.ID)
			if err != nil {
				return err
			}
			b.deadLetter(ctx, topic, p.ID, body, fmt.Sprintf("gave up after %d deliveries", p.RetryCount))
			continue
		}
		claim = append(claim, p.ID)
	}
	if len(claim) == 0 {
		return nil
	}

	msgs, err := b.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    b.ropts.Group,
		Consumer: b.ropts.Consumer,
		MinIdle:  b.ropts.ClaimIdle,
		Messages: claim,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim on %s: %w", topic, err)
	}
	for _, msg := range msgs {
		b.process(ctx, topic, msg)
	}
	return nil
}

func (b *RedisBus) body(ctx context.Context, stream, id string) (string, error) {
	msgs, err := b.client.XRangeN(ctx, stream, id, id, 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read %s from %s: %w", id, stream, err)
	}
	if len(msgs) == 0 {
		return "", nil
	}
	body, _ := msgs[0].Values[constants.BusEnvelopeField].(string)
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
