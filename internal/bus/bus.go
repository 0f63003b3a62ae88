// Package bus is the at-least-once transport between components. Messages
// are encoded envelopes; handlers receive decoded events.
package bus

import (
	"context"
	"fmt"
	"time"

	"matchcore/internal/config"
	"matchcore/internal/constants"
	"matchcore/internal/events"
	"matchcore/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Handler processes one decoded event. Its error is classified with the
// failure package to decide between ack, redelivery and dead-lettering.
type Handler func(ctx context.Context, evt events.Event) error

type Bus interface {
	Publish(ctx context.Context, topic string, body []byte) error
	// Subscribe registers the single handler for topic. It must be called
	// before Start.
	Subscribe(topic events.Type, h Handler) error
	Start(ctx context.Context) error
	Stop()
}

// VisitorHandler adapts a Visitor to a Handler.
func VisitorHandler(v events.Visitor) Handler {
	return func(ctx context.Context, evt events.Event) error {
		return evt.Accept(ctx, v)
	}
}

type Options struct {
	// HandlerAttempts is the number of in-process tries for a transient error.
	HandlerAttempts uint64
	RetryBase       time.Duration
	// MaxDeliveries bounds redeliveries before a message is dead-lettered.
	MaxDeliveries int64
}

func DefaultOptions() Options {
	return Options{
		HandlerAttempts: constants.BusHandlerAttempts,
		RetryBase:       constants.BusRetryBase,
		MaxDeliveries:   constants.BusMaxDeliveries,
	}
}

type DeadLetter struct {
	Topic  string
	Body   []byte
	Reason string
	At     time.Time
}

// New builds the bus selected by BUS_DRIVER.
func New(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (Bus, error) {
	switch cfg.BusDriver {
	case config.BusMemory:
		return NewMemoryBus(DefaultOptions(), m, logger), nil
	case config.BusRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		group := cfg.ServiceName
		if group == "" {
			group = "matchcore"
		}
		return NewRedisBus(client, RedisOptions{
			Options:  DefaultOptions(),
			Group:    group,
			Consumer: consumerName(group),
			Block:    constants.BusBlock,
		}, m, logger), nil
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
}
