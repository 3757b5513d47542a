package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newTestWriter(fw *fakeWriter) (*Writer, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), metrics: metrics}, metrics
}

func TestSubmissionMessage(t *testing.T) {
	now := time.Date(2025, 8, 15, 6, 0, 0, 0, time.UTC)
	s := domain.Submission{
		ID:        uuid.MustParse("01890f4e-3c1a-7000-8000-000000000001"),
		Kind:      domain.KindHelpRequest,
		Status:    domain.StatusAccepted,
		RemoteID:  "req-42",
		CreatedAt: now,
	}

	msg, err := submissionMessage(s)
	require.NoError(t, err)

	assert.Equal(t, []byte("01890f4e-3c1a-7000-8000-000000000001"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"help_request"`)
	assert.Contains(t, string(msg.Value), `"remote_id":"req-42"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventSubmission), msg.Headers[0].Value)
	assert.Equal(t, []byte("help_request"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSnapshotMessage_SummarizesPoints(t *testing.T) {
	snap := domain.HeatSnapshot{
		Source: domain.SourceAll,
		Points: []domain.HeatPoint{{Lat: 19, Lng: 72, Intensity: 1}, {Lat: 28, Lng: 77, Intensity: 0.5}},
		Status: map[string]string{"nasa": "2 fires detected"},
	}

	msg, err := snapshotMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("ALL"), msg.Key)
	assert.JSONEq(t, `{"source":"ALL","points":2,"status":{"nasa":"2 fires detected"},"last_update":"0001-01-01T00:00:00Z"}`, string(msg.Value))
	assert.Equal(t, []byte(EventSnapshot), msg.Headers[0].Value)
}

func TestWriter_PublishCountsOutcomes(t *testing.T) {
	fw := &fakeWriter{}
	w, metrics := newTestWriter(fw)

	require.NoError(t, w.PublishSubmission(context.Background(), domain.NewSubmission(domain.KindDonation, domain.StatusAccepted)))
	require.NoError(t, w.PublishSnapshot(context.Background(), domain.HeatSnapshot{Source: domain.SourceUSGS}))
	assert.Len(t, fw.msgs, 2)

	fw.err = errors.New("leader not available")
	err := w.PublishSubmission(context.Background(), domain.NewSubmission(domain.KindDonation, domain.StatusAccepted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish submission event")

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(EventSubmission, "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(EventSubmission, "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(EventSnapshot, "success")), 0)
}
