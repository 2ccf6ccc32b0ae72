package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubmissionEvent announces a submission reaching a terminal state.
type SubmissionEvent struct {
	SubmissionID uint      `json:"submission_id"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher emits submission lifecycle events over NATS. A nil Publisher (or
// one built without a connection) is a no-op, so event delivery is strictly
// best-effort and never affects job outcomes.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewPublisher constructs a publisher. conn may be nil when NATS is not configured.
func NewPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish sends the event, logging (not returning) failures.
func (p *Publisher) Publish(event SubmissionEvent) {
	if p == nil || p.conn == nil || p.subject == "" {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode submission event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish submission event")
	}
}
