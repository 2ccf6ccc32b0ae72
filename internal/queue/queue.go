package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const popTimeout = 5 * time.Second

// deadLetterSuffix names the list that collects undecodable queue payloads.
const deadLetterSuffix = ":dead"

// job is the wire format of one queued submission.
type job struct {
	SubmissionID uint      `json:"submission_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Producer pushes submission ids onto the processing queue. Enqueue is
// fire-and-forget from the caller's point of view: it returns as soon as the
// id is queued, never waiting on AI completion.
type Producer struct {
	client *redis.Client
	queue  string
	logger zerolog.Logger
}

// NewProducer constructs a producer for the named queue.
func NewProducer(client *redis.Client, queueName string, logger zerolog.Logger) *Producer {
	return &Producer{
		client: client,
		queue:  queueName,
		logger: logger.With().Str("component", "queue_producer").Logger(),
	}
}

// Enqueue schedules a submission for asynchronous processing.
func (p *Producer) Enqueue(ctx context.Context, submissionID uint) error {
	payload, err := json.Marshal(job{SubmissionID: submissionID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if err := p.client.LPush(ctx, p.queue, payload).Err(); err != nil {
		return err
	}

	p.logger.Info().Uint("submission_id", submissionID).Msg("submission enqueued")
	return nil
}

// Handler processes one dequeued submission id.
type Handler func(ctx context.Context, submissionID uint) error

// Consumer pops submission jobs off the queue and hands them to a handler.
type Consumer struct {
	client *redis.Client
	queue  string
	logger zerolog.Logger
}

// NewConsumer constructs a consumer for the named queue.
func NewConsumer(client *redis.Client, queueName string, logger zerolog.Logger) *Consumer {
	return &Consumer{
		client: client,
		queue:  queueName,
		logger: logger.With().Str("component", "queue_consumer").Logger(),
	}
}

// Consume blocks, popping jobs until the context is cancelled. Undecodable
// payloads are moved to the dead-letter list rather than retried forever;
// handler errors are logged and owned by the handler's own retry policy.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := c.client.BRPop(ctx, popTimeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Str("queue", c.queue).Msg("failed to pop job")
			continue
		}

		if len(result) < 2 {
			continue
		}

		payload := result[1]
		var j job
		if err := json.Unmarshal([]byte(payload), &j); err != nil || j.SubmissionID == 0 {
			c.logger.Error().Err(err).Str("queue", c.queue).Msg("undecodable job payload, moving to dead letter list")
			if dlqErr := c.client.LPush(ctx, c.queue+deadLetterSuffix, payload).Err(); dlqErr != nil {
				c.logger.Error().Err(dlqErr).Msg("failed to move payload to dead letter list")
			}
			continue
		}

		if err := handler(ctx, j.SubmissionID); err != nil {
			c.logger.Error().Err(err).Uint("submission_id", j.SubmissionID).Msg("job handler failed")
		}
	}
}
