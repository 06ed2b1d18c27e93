package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
	lockErr error
}

func (m *memStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	n := min(batchSize, len(m.pending))
	batch := m.pending[:n]
	m.pending = m.pending[n:]
	return batch, nil
}

func (m *memStore) MarkSent(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, ids...)
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = map[int64]string{}
	}
	m.failed[id] = errMsg
	return nil
}

func (m *memStore) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type memProducer struct {
	msgs   []kafka.Message
	failOn map[string]error
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if err := p.failOn[string(m.Key)]; err != nil {
			return err
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchBuildsKafkaMessage(t *testing.T) {
	p := &memProducer{}
	d := NewDispatcher(quietLogger(), p, "disbursement.events")

	err := d.Dispatch(context.Background(), Event{
		ID:          7,
		AggregateID: "tr_123",
		Type:        "TransferSent",
		Payload:     []byte(`{"payee_id":"a.json"}`),
		Headers:     map[string]string{"source": "pix-disburser", "attempt": "1"},
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})
	require.NoError(t, err)

	require.Len(t, p.msgs, 1)
	msg := p.msgs[0]
	assert.Equal(t, "disbursement.events", msg.Topic)
	assert.Equal(t, "tr_123", string(msg.Key))
	assert.JSONEq(t, `{"payee_id":"a.json"}`, string(msg.Value))
	assert.Equal(t, []kafka.Header{
		{Key: "attempt", Value: []byte("1")},
		{Key: "source", Value: []byte("pix-disburser")},
		{Key: "event_type", Value: []byte("TransferSent")},
		{Key: "traceparent", Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")},
	}, msg.Headers)
}

func TestDrainShipsEverythingAndMarksFailures(t *testing.T) {
	store := &memStore{}
	for i := int64(1); i <= 250; i++ {
		store.pending = append(store.pending, Event{ID: i, AggregateID: "agg", Type: "PayeeCommitted"})
	}
	store.pending[3].AggregateID = "broken"

	boom := errors.New("leader not available")
	p := &memProducer{failOn: map[string]error{"broken": boom}}
	relay := NewRelay(quietLogger(), store, NewDispatcher(quietLogger(), p, "t"), "test-relay")

	sent, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 249, sent)
	assert.Len(t, store.sent, 249)
	assert.Len(t, p.msgs, 249)
	assert.Equal(t, map[int64]string{4: "leader not available"}, store.failed)
}

func TestDrainReturnsLockError(t *testing.T) {
	store := &memStore{lockErr: errors.New("connection refused")}
	relay := NewRelay(quietLogger(), store, NewDispatcher(quietLogger(), &memProducer{}, "t"), "test-relay")

	sent, err := relay.Drain(context.Background())
	assert.Zero(t, sent)
	assert.EqualError(t, err, "connection refused")
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &memStore{pending: []Event{{ID: 1, AggregateID: "a"}}}
	p := &memProducer{}
	relay := NewRelay(quietLogger(), store, NewDispatcher(quietLogger(), p, "t"), "test-relay")
	relay.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return store.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestDrainLogsReclaimedEvents(t *testing.T) {
	lastErr := "leader not available"
	store := &memStore{pending: []Event{
		{ID: 1, AggregateID: "a", Status: StatusPending},
		{ID: 2, AggregateID: "b", Status: StatusFailed, RelayID: "old-relay", RetryCount: 2, LastError: &lastErr},
	}}
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	relay := NewRelay(log, store, NewDispatcher(quietLogger(), &memProducer{}, "t"), "test-relay")

	sent, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	var reclaimed []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] == "relay reclaiming event" {
			reclaimed = append(reclaimed, rec)
		}
	}
	require.Len(t, reclaimed, 1)
	assert.EqualValues(t, 2, reclaimed[0]["event_id"])
	assert.Equal(t, "failed", reclaimed[0]["status"])
	assert.Equal(t, "old-relay", reclaimed[0]["previous_relay"])
	assert.Equal(t, lastErr, reclaimed[0]["last_error"])
}
