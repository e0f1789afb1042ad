package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/greenyield/greenyield/internal/api/models"
)

// Job types understood by the worker.
const (
	JobTypeForecastBatch  = "forecast_batch"
	JobTypeWeatherRefresh = "weather_refresh"
)

// Message is the JSON payload of a worker Pub/Sub message.
type Message struct {
	JobType  string                   `json:"job_type"`
	GrowerID string                   `json:"grower_id,omitempty"`
	Inputs   []models.ForecastRequest `json:"inputs,omitempty"`
}

// Outcome is what should happen to a processed message.
type Outcome int

const (
	// Ack removes the message from the subscription.
	Ack Outcome = iota
	// Nack asks Pub/Sub to redeliver the message.
	Nack
)

func (o Outcome) String() string {
	if o == Ack {
		return "ack"
	}
	return "nack"
}

// Dispatcher routes decoded messages to jobs. It has no Pub/Sub dependency.
type Dispatcher struct {
	batch   *BatchJob
	refresh *RefreshJob
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. refresh may be nil, in which case
// weather refresh messages are acknowledged and dropped.
func NewDispatcher(batch *BatchJob, refresh *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{batch: batch, refresh: refresh, logger: logger}
}

// Process handles one payload. Malformed payloads are nacked so they reach
// the dead-letter topic after the subscription's retry budget. Unknown job
// types are acked to stop redelivery.
func (d *Dispatcher) Process(ctx context.Context, data []byte) Outcome {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		d.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	logger := d.logger.With().Str("job_type", msg.JobType).Logger()

	var err error
	switch msg.JobType {
	case JobTypeForecastBatch:
		err = d.forecastBatch(ctx, msg)
	case JobTypeWeatherRefresh:
		err = d.weatherRefresh(ctx)
	default:
		logger.Warn().Msg("unknown job type")
		return Ack
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		return Nack
	}
	return Ack
}

func (d *Dispatcher) forecastBatch(ctx context.Context, msg Message) error {
	result, err := d.batch.Run(ctx, msg.GrowerID, msg.Inputs)
	if err != nil {
		return err
	}

	for _, itemErr := range result.Errors {
		d.logger.Warn().
			Err(itemErr.Err).
			Str("grower_id", msg.GrowerID).
			Int("index", itemErr.Index).
			Msg("batch item failed")
	}

	// Partial failures are final: redelivery would duplicate the stored forecasts.
	if result.Succeeded == 0 {
		return fmt.Errorf("all %d batch items failed", result.Total)
	}
	return nil
}

func (d *Dispatcher) weatherRefresh(ctx context.Context) error {
	if d.refresh == nil {
		d.logger.Debug().Msg("weather refresh not configured")
		return nil
	}

	result := d.refresh.Run(ctx)
	if result.Total > 0 && result.Refreshed == 0 {
		return errors.New("weather refresh failed for every location")
	}
	return nil
}

// PubSubHandler receives worker messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger

	// MaxOutstanding bounds messages processed concurrently. Defaults to 10.
	MaxOutstanding int
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding < 1 {
		maxOutstanding = 10
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := time.Now()
		outcome := h.dispatcher.Process(ctx, msg.Data)

		h.logger.Info().
			Str("message_id", msg.ID).
			Time("publish_time", msg.PublishTime).
			Str("outcome", outcome.String()).
			Dur("duration", time.Since(start)).
			Msg("message processed")

		if outcome == Ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
