package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaLogger_Log(t *testing.T) {
	w := &fakeWriter{}
	l := NewKafkaLogger(w, "report-svc")

	entry := NewEntry(time.Now(), CategoryReport, ActionExport, "Relatório de Unidades Produtivas").
		With("record_count", 12)

	require.NoError(t, l.Log(context.Background(), entry))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "report", string(msg.Key))
	assert.Equal(t, entry.Timestamp, msg.Time)

	var decoded Entry
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "report-svc", decoded.Service)
	assert.Equal(t, "Relatório de Unidades Produtivas", decoded.DisplayName)
	assert.EqualValues(t, 12, decoded.Extra["record_count"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "report-svc", headers["service"])
	assert.Equal(t, "EXPORT", headers["action"])
}

func TestKafkaLogger_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	l := NewKafkaLogger(w, "report-svc")

	err := l.Log(context.Background(), reportEntry("x"))
	assert.ErrorContains(t, err, "leader not available")
}

func TestKafkaLogger_CloseAndQuery(t *testing.T) {
	w := &fakeWriter{}
	l := NewKafkaLogger(w, "report-svc")

	_, err := l.Query(context.Background(), nil)
	assert.ErrorIs(t, err, ErrQueryNotSupported)
	require.NoError(t, l.Close())
	assert.True(t, w.closed)
}
