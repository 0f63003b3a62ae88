package bus

import (
	"context"
	"time"

	"matchcore/internal/constants"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRetry:
		return "retry"
	}
	return "dead_letter"
}

type dispatcher struct {
	opts    Options
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// deliver decodes body and runs h, retrying transient failures in process
// with exponential backoff. The returned reason is set for dead letters.
func (d *dispatcher) deliver(ctx context.Context, topic string, body []byte, h Handler) (outcome, string) {
	evt, env, err := events.Decode(body)
	if err != nil {
		d.logger.Error().Err(err).Str("topic", topic).Msg("rejecting malformed message")
		d.count(topic, outcomeDeadLetter)
		return outcomeDeadLetter, err.Error()
	}
	if string(env.Type) != topic {
		d.logger.Error().Str("topic", topic).Str("type", string(env.Type)).Msg("event type does not match topic")
		d.count(topic, outcomeDeadLetter)
		return outcomeDeadLetter, "event type " + string(env.Type) + " on topic " + topic
	}

	backoff := retry.WithMaxRetries(max(d.opts.HandlerAttempts, 1)-1, retry.NewExponential(d.opts.RetryBase))
	var last error
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, constants.HandlerTimeout)
		defer cancel()

		last = h(hctx, evt)
		if failure.Classify(last) == failure.KindTransient {
			return retry.RetryableError(last)
		}
		return nil
	})
	if err != nil && last == nil {
		last = err
	}

	log := d.logger.With().Str("topic", topic).Time("sent_at", env.Timestamp).Logger()
	kind := failure.Classify(last)
	var o outcome
	switch kind {
	case failure.KindNone:
		o = outcomeAck
	case failure.KindDuplicate:
		log.Debug().Err(last).Msg("duplicate delivery acknowledged")
		o = outcomeAck
	case failure.KindBusiness:
		log.Warn().Err(last).Msg("business rule failure, acknowledged")
		o = outcomeAck
	case failure.KindValidation:
		log.Error().Err(last).Msg("validation failure, dead-lettering")
		o = outcomeDeadLetter
	default:
		log.Warn().Err(last).Msg("transient failure, leaving for redelivery")
		o = outcomeRetry
	}
	d.count(topic, o)

	if o == outcomeDeadLetter {
		return o, last.Error()
	}
	return o, ""
}

func (d *dispatcher) count(topic string, o outcome) {
	if d.metrics != nil {
		d.metrics.BusMessages.WithLabelValues(topic, o.String()).Inc()
	}
}

func deadLetterAt() time.Time {
	return time.Now().UTC()
}
