package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sonirico/wavechan"
)

// Envelope is what gets published for every inbound event. InstanceID lets
// consumers tell apart several relays feeding the same Redis channel.
type Envelope struct {
	InstanceID string          `json:"instance_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Publisher is the part of a Redis client the relay needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// DefaultQueueSize bounds how many events may wait for Redis.
const DefaultQueueSize = 256

// Relay republishes channel events on a Redis pub/sub channel so other
// processes can consume them. Handle only enqueues; Run publishes in arrival
// order, so a slow Redis never stalls the channel's other subscribers. Events
// arriving while the queue is full are dropped and logged.
type Relay struct {
	pub        Publisher
	channel    string
	instanceID string
	logger     zerolog.Logger
	now        func() time.Time
	timeout    time.Duration
	queue      chan wavechan.Event
}

// New creates a relay publishing on channel through pub.
func New(pub Publisher, channel string, logger zerolog.Logger) *Relay {
	return &Relay{
		pub:        pub,
		channel:    channel,
		instanceID: uuid.New().String(),
		logger:     logger.With().Str("component", "redis-relay").Logger(),
		now:        time.Now,
		timeout:    2 * time.Second,
		queue:      make(chan wavechan.Event, DefaultQueueSize),
	}
}

// Dial connects to Redis and checks it answers.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// InstanceID identifies this relay in published envelopes.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

func (r *Relay) envelope(ev wavechan.Event) Envelope {
	return Envelope{
		InstanceID: r.instanceID,
		Type:       ev.Type,
		Payload:    ev.Raw,
		ReceivedAt: r.now().UTC(),
	}
}

// Handle queues ev for publishing. It never blocks.
func (r *Relay) Handle(ev wavechan.Event) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn().Str("type", ev.Type).Msg("relay queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.publish(ctx, ev)
		}
	}
}

// publish sends ev to Redis. Failures are logged; the event is not retried.
func (r *Relay) publish(ctx context.Context, ev wavechan.Event) {
	data, err := json.Marshal(r.envelope(ev))
	if err != nil {
		r.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.pub.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to publish event")
		return
	}

	r.logger.Debug().Str("type", ev.Type).Str("channel", r.channel).Msg("event relayed")
}
