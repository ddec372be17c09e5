package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MewKitBit/Solaris/internal/sim"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Config selects the snapshot sink. No brokers means publishing is disabled
// and the publisher becomes a no-op.
type Config struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Topic:   "solaris.farm.snapshots",
		Timeout: 2 * time.Second,
	}
}

// messageWriter is the slice of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher streams per-step farm snapshots to a broker, keyed by run id.
// Delivery is best effort: broker failures are logged and never stall the
// simulation loop.
type Publisher struct {
	topic   string
	timeout time.Duration
	writer  messageWriter
}

// New returns a publisher for the config, or nil when no brokers are set.
// A nil publisher is safe to use; every method is a no-op.
func New(cfg Config) *Publisher {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Publisher{topic: cfg.Topic, timeout: cfg.Timeout, writer: w}
}

// Publish sends one step record. Errors are logged, not returned.
func (p *Publisher) Publish(ctx context.Context, rec sim.StepRecord) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Int("step", rec.Step).Msg("snapshot_encode_failed")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(rec.RunID),
		Value: payload,
		Time:  rec.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Int("step", rec.Step).Str("topic", p.topic).Msg("snapshot_publish_failed")
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
