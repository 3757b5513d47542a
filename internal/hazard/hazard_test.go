package hazard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/hazard"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

const (
	firmsBody = "latitude,longitude,bright_ti4,scan,track,acq_date\n" +
		"19.07,72.87,400,0.4,0.4,2025-03-01\n" +
		"28.70,77.10,200,0.4,0.4,2025-03-01\n"
	usgsBody  = `{"features":[{"properties":{"mag":7.0},"geometry":{"coordinates":[94.1,24.8,10]}}]}`
	gdacsBody = `<rss xmlns:georss="http://www.georss.org/georss"><channel><item><georss:point>26.2 92.9</georss:point></item></channel></rss>`
)

// --- mocks ---

type stubFeed struct {
	mu     sync.Mutex
	bodies map[domain.Source]string
	errs   map[domain.Source]error
	calls  map[domain.Source]int
}

func newStubFeed() *stubFeed {
	return &stubFeed{
		bodies: map[domain.Source]string{
			domain.SourceFIRMS: firmsBody,
			domain.SourceUSGS:  usgsBody,
			domain.SourceGDACS: gdacsBody,
		},
		errs:  map[domain.Source]error{},
		calls: map[domain.Source]int{},
	}
}

func (f *stubFeed) Fetch(_ context.Context, src domain.Source) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src]++
	if err := f.errs[src]; err != nil {
		return nil, err
	}
	return []byte(f.bodies[src]), nil
}

func (f *stubFeed) callCount(src domain.Source) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []domain.HeatSnapshot
	err   error
}

func (p *recordingPublisher) PublishSnapshot(_ context.Context, snap domain.HeatSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

// stallingFeed blocks until the caller's context ends while stall is set.
type stallingFeed struct {
	*stubFeed
	stall atomic.Bool
}

func (f *stallingFeed) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	if f.stall.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.stubFeed.Fetch(ctx, src)
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Aggregator ---

func TestAggregator_Collect_All(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	agg := hazard.NewAggregator(newStubFeed(), discardLogger(), metrics)

	snap := agg.Collect(context.Background(), domain.SourceAll)

	assert.Equal(t, domain.SourceAll, snap.Source)
	assert.Equal(t, []domain.HeatPoint{
		{Lat: 19.07, Lng: 72.87, Intensity: 1},
		{Lat: 28.70, Lng: 77.10, Intensity: 0.5},
		{Lat: 24.8, Lng: 94.1, Intensity: 1},
		{Lat: 26.2, Lng: 92.9, Intensity: 0.8},
	}, snap.Points, "points are merged NASA, USGS, GDACS")
	assert.Equal(t, map[string]string{
		"nasa":  "2 fires detected",
		"usgs":  "1 earthquakes",
		"gdacs": "1 UN alerts",
	}, snap.Status)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.HazardPoints.WithLabelValues("nasa")), 0)
}

func TestAggregator_Collect_SingleSource(t *testing.T) {
	feed := newStubFeed()
	agg := hazard.NewAggregator(feed, discardLogger(), observability.NewMetricsForTesting())

	snap := agg.Collect(context.Background(), domain.SourceGDACS)

	assert.Len(t, snap.Points, 1)
	assert.Equal(t, map[string]string{"gdacs": "1 UN alerts"}, snap.Status)
	assert.Zero(t, feed.callCount(domain.SourceFIRMS))
}

func TestAggregator_Collect_FailuresDegrade(t *testing.T) {
	feed := newStubFeed()
	feed.errs[domain.SourceFIRMS] = errors.New("connection refused")
	feed.bodies[domain.SourceUSGS] = "<html>bad gateway</html>"
	metrics := observability.NewMetricsForTesting()
	agg := hazard.NewAggregator(feed, discardLogger(), metrics)

	snap := agg.Collect(context.Background(), domain.SourceAll)

	assert.Equal(t, []domain.HeatPoint{{Lat: 26.2, Lng: 92.9, Intensity: 0.8}}, snap.Points)
	assert.Equal(t, "API temporarily unavailable", snap.Status["nasa"])
	assert.Equal(t, "API Error", snap.Status["usgs"])
	assert.Equal(t, "1 UN alerts", snap.Status["gdacs"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HazardSourceErrors.WithLabelValues("nasa")), 0)
}

func TestAggregator_Collect_AllFailedStillEmptyList(t *testing.T) {
	feed := newStubFeed()
	for _, src := range domain.Sources {
		feed.errs[src] = errors.New("down")
	}
	agg := hazard.NewAggregator(feed, discardLogger(), observability.NewMetricsForTesting())

	snap := agg.Collect(context.Background(), domain.SourceAll)

	assert.NotNil(t, snap.Points)
	assert.Empty(t, snap.Points)
	assert.Len(t, snap.Status, 3)
}

func TestAggregator_Collect_StampsClock(t *testing.T) {
	at := time.Date(2025, time.July, 14, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })

	agg := hazard.NewAggregator(newStubFeed(), discardLogger(), observability.NewMetricsForTesting())
	snap := agg.Collect(context.Background(), domain.SourceUSGS)

	assert.Equal(t, at, snap.LastUpdate)
}

// --- Refresher ---

func newRefresher(feed hazard.Feed, opts ...hazard.Option) *hazard.Refresher {
	metrics := observability.NewMetricsForTesting()
	agg := hazard.NewAggregator(feed, discardLogger(), metrics)
	return hazard.NewRefresher(agg, domain.SourceAll, 15*time.Minute, discardLogger(), metrics, opts...)
}

func TestRefresher_NotReadyBeforeFirstRefresh(t *testing.T) {
	r := newRefresher(newStubFeed())

	require.Error(t, r.CheckReadiness(context.Background()))
	snap, loading := r.Snapshot()
	assert.False(t, loading)
	assert.Empty(t, snap.Points)

	r.Refresh(context.Background())
	require.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_SelectChangesSource(t *testing.T) {
	feed := newStubFeed()
	r := newRefresher(feed)

	snap := r.Select(context.Background(), domain.SourceUSGS)

	assert.Equal(t, domain.SourceUSGS, r.Selected())
	assert.Equal(t, domain.SourceUSGS, snap.Source)
	assert.Len(t, snap.Points, 1)
	assert.Zero(t, feed.callCount(domain.SourceFIRMS))

	current, _ := r.Snapshot()
	assert.Equal(t, snap.Points, current.Points)
}

func TestRefresher_ManualRefreshInvalidatesAndPublishes(t *testing.T) {
	inv := &countingInvalidator{}
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := newRefresher(newStubFeed(), hazard.WithInvalidator(inv), hazard.WithPublisher(pub))

	r.Refresh(context.Background())
	r.Refresh(context.Background())

	assert.Equal(t, 2, inv.n)
	assert.Len(t, pub.snaps, 2, "publish failures do not stop refreshes")
}

func TestRefresher_SnapshotIsACopy(t *testing.T) {
	r := newRefresher(newStubFeed())
	r.Refresh(context.Background())

	snap, _ := r.Snapshot()
	snap.Status["nasa"] = "tampered"

	snap.Points[0].Intensity = 0

	again, _ := r.Snapshot()
	assert.Equal(t, "2 fires detected", again.Status["nasa"])
	assert.InDelta(t, 1, again.Points[0].Intensity, 0)
}

func TestRefresher_CancelledRefreshKeepsPreviousSnapshot(t *testing.T) {
	feed := &stallingFeed{stubFeed: newStubFeed()}
	pub := &recordingPublisher{}
	metrics := observability.NewMetricsForTesting()
	agg := hazard.NewAggregator(feed, discardLogger(), metrics)
	r := hazard.NewRefresher(agg, domain.SourceAll, 15*time.Minute, discardLogger(), metrics, hazard.WithPublisher(pub))

	before := r.Refresh(context.Background())
	require.Len(t, before.Points, 4)

	feed.stall.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got := r.Refresh(ctx)

	assert.Equal(t, before.Points, got.Points)
	snap, loading := r.Snapshot()
	assert.False(t, loading)
	assert.Equal(t, before.Points, snap.Points)
	assert.Equal(t, map[string]string{
		"nasa":  "2 fires detected",
		"usgs":  "1 earthquakes",
		"gdacs": "1 UN alerts",
	}, snap.Status)
	assert.Len(t, pub.snaps, 1, "abandoned refreshes are not published")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HazardRefreshes.WithLabelValues(hazard.TriggerAbandoned)), 0)
}

func TestRefresher_Run_TicksOnInterval(t *testing.T) {
	feed := newStubFeed()
	fc := clockwork.NewFakeClock()
	r := newRefresher(feed, hazard.WithClock(fc))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, feed.callCount(domain.SourceFIRMS), "refreshes once at startup")
	require.NoError(t, r.CheckReadiness(ctx))

	fc.Advance(15 * time.Minute)
	assert.Eventually(t, func() bool {
		return feed.callCount(domain.SourceFIRMS) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}
