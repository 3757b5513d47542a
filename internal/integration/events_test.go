//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/sqlite"
	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/hazard"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
	"github.com/couchcryptid/sahayata-dashboard/internal/relief"
)

const testTopic = "test-relief-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("sahayata-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// event is one message read back from the topic.
type event struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) event {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from event topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return event{Key: string(msg.Key), Headers: headers, Value: msg.Value}
}

// fakeRelief stands in for the remote relief API.
func fakeRelief(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /volunteer", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"volunteerId":"vol-77"}`)
	})
	mux.HandleFunc("GET /fetchDisasterData", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features":[{"properties":{"mag":6.1},"geometry":{"coordinates":[94.1,24.8,10]}}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestSubmissionAndSnapshotEvents wires the relief service and the hazard
// refresher to a real broker and a file-backed journal, then reads both event
// types back from the topic.
func TestSubmissionAndSnapshotEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	remote := fakeRelief(t)

	cfg := &config.Config{
		BackendBaseURL:   remote.URL,
		HelpRequestURL:   remote.URL + "/submitHelpRequest",
		BackendTimeout:   5 * time.Second,
		BackendRateLimit: 100,
		BackendBurst:     10,
		MaxResponseBytes: 1 << 20,
		KafkaBrokers:     []string{broker},
		KafkaTopic:       testTopic,
	}
	metrics := observability.NewMetricsForTesting()

	writer := kafka.NewWriter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = writer.Close() })

	journal, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	client := backend.NewClient(cfg, metrics, discardLogger())
	svc := relief.NewService(client, discardLogger(), metrics, relief.WithJournal(journal), relief.WithPublisher(writer))

	form := domain.NewVolunteerForm()
	form.FullName = "Asha Menon"
	form.PhoneNumber = "+91 98470 00000"
	ack, err := svc.RegisterVolunteer(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "Volunteer registered! ID: vol-77", ack.Message)

	agg := hazard.NewAggregator(backend.NewCachedFeed(client, 0, metrics), discardLogger(), metrics)
	refresher := hazard.NewRefresher(agg, domain.SourceUSGS, time.Hour, discardLogger(), metrics, hazard.WithPublisher(writer))
	snap := refresher.Refresh(ctx)
	require.Len(t, snap.Points, 1)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]event{}
	for len(received) < 2 {
		ev := readEvent(ctx, t, consumer)
		received[ev.Headers["event_type"]] = ev
	}

	sub := received[kafka.EventSubmission]
	assert.Equal(t, "volunteer", sub.Headers["kind"])
	_, err = time.Parse(time.RFC3339, sub.Headers["produced_at"])
	require.NoError(t, err, "produced_at should be valid RFC3339")

	var published domain.Submission
	require.NoError(t, json.Unmarshal(sub.Value, &published))
	assert.Equal(t, published.ID.String(), sub.Key)
	assert.Equal(t, "vol-77", published.RemoteID)
	assert.Equal(t, domain.StatusAccepted, published.Status)

	recent, err := journal.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, published.ID, recent[0].ID, "journal and event share the submission ID")

	snapEvent := received[kafka.EventSnapshot]
	assert.Equal(t, "USGS", snapEvent.Key)
	assert.JSONEq(t, `{"usgs":"1 earthquakes"}`, string(mustField(t, snapEvent.Value, "status")))
}

func mustField(t *testing.T, raw []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[field]
}
