package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProduceKeysByEventID(t *testing.T) {
	w := &fakeWriter{}
	p := newAlertProducer(w, "soc_alerts")
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := p.Produce(context.Background(), []model.Alert{
		{EventID: "abc123def456", RiskScore: 9, Summary: "brute force", AnalyzedAt: at},
		{EventID: "0011aabbccdd", RiskScore: 3, Summary: "scan", AnalyzedAt: at},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 2)
	assert.Equal(t, "abc123def456", string(w.written[0].Key))

	var decoded model.Alert
	require.NoError(t, json.Unmarshal(w.written[0].Value, &decoded))
	assert.Equal(t, 9, decoded.RiskScore)
	assert.Equal(t, "brute force", decoded.Summary)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProduceEmptyAndError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newAlertProducer(w, "soc_alerts")

	assert.NoError(t, p.Produce(context.Background(), nil))
	assert.Error(t, p.Produce(context.Background(), []model.Alert{{EventID: "x"}}))
}

func TestNewKafkaAlertProducerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaAlertProducer(&config.Config{})
	assert.Error(t, err)
}
