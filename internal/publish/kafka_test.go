package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MewKitBit/Solaris/internal/sim"
	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func testRecord() sim.StepRecord {
	return sim.StepRecord{
		RunID:       "run-abc",
		Step:        7,
		Timestamp:   time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
		IdealWatts:  965.9,
		OutputWatts: 3710.2,
		Stats:       sim.OutputStats{MeanWatts: 927.5, SumWatts: 3710.2},
		Soiling:     []float64{0.0011},
	}
}

func TestDisabledPublisherIsNoOp(t *testing.T) {
	testlog.Start(t)

	p := New(Config{})
	if p != nil {
		t.Fatalf("brokerless config built a publisher")
	}
	// nil receiver paths must be safe for the runner hook.
	p.Publish(context.Background(), testRecord())
	if err := p.Close(); err != nil {
		t.Fatalf("nil close err=%v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	testlog.Start(t)

	p := New(Config{Brokers: []string{"localhost:9092"}})
	if p == nil {
		t.Fatalf("publisher not built")
	}
	if p.topic != DefaultConfig().Topic {
		t.Fatalf("topic=%q", p.topic)
	}
	if p.timeout != DefaultConfig().Timeout {
		t.Fatalf("timeout=%v", p.timeout)
	}
}

func TestPublishEncodesRecord(t *testing.T) {
	testlog.Start(t)

	w := &captureWriter{}
	p := &Publisher{topic: "t", timeout: time.Second, writer: w}
	rec := testRecord()
	p.Publish(context.Background(), rec)

	if len(w.msgs) != 1 {
		t.Fatalf("messages=%d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != rec.RunID {
		t.Fatalf("key=%q, want run id", msg.Key)
	}
	if !msg.Time.Equal(rec.Timestamp) {
		t.Fatalf("time=%v, want %v", msg.Time, rec.Timestamp)
	}

	var decoded sim.StepRecord
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if decoded.Step != rec.Step || decoded.OutputWatts != rec.OutputWatts {
		t.Fatalf("decoded=%+v, want %+v", decoded, rec)
	}
}

func TestPublishSwallowsBrokerErrors(t *testing.T) {
	testlog.Start(t)

	w := &captureWriter{err: errors.New("broker down")}
	p := &Publisher{topic: "t", timeout: time.Second, writer: w}
	p.Publish(context.Background(), testRecord())

	if len(w.msgs) != 0 {
		t.Fatalf("messages captured despite error")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if !w.closed {
		t.Fatalf("writer not closed")
	}
}
