package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/config"
	"airwatch/internal/notify"
	"airwatch/internal/state"
	"airwatch/internal/types"
)

// ============================================================
// Fakes
// ============================================================

type acquireResult struct {
	reading types.Reading
	err     error
}

// scriptedSource returns its results in order, then reports exhaustion.
type scriptedSource struct {
	mu      sync.Mutex
	results []acquireResult
	calls   int
	commits int
}

func (s *scriptedSource) Acquire(context.Context) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return types.Reading{}, types.NewAppError(types.ErrCodeAcquisitionExhausted, "no rows", nil)
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.reading, r.err
}

func (s *scriptedSource) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

type staticSettings struct {
	mu    sync.Mutex
	queue []*config.Settings
	last  *config.Settings
}

func newStaticSettings(s ...*config.Settings) *staticSettings {
	return &staticSettings{queue: s}
}

func (p *staticSettings) Current(context.Context) *config.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		p.last = p.queue[0]
		p.queue = p.queue[1:]
	}
	return p.last
}

type recordingPersister struct {
	records []types.PersistedState
	err     error
}

func (p *recordingPersister) Persist(_ context.Context, record types.PersistedState) error {
	p.records = append(p.records, record)
	return p.err
}

type recordingNotifier struct {
	alerts   []notify.Alert
	contacts []config.EmailSettings
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, alert notify.Alert, contact config.EmailSettings) error {
	n.alerts = append(n.alerts, alert)
	n.contacts = append(n.contacts, contact)
	return n.err
}

type recordingSink struct {
	readings []types.Reading
	cycleIDs []string
	err      error
	onUpload func()
}

func (s *recordingSink) Upload(ctx context.Context, r types.Reading) error {
	s.readings = append(s.readings, r)
	s.cycleIDs = append(s.cycleIDs, types.GetCycleID(ctx))
	if s.onUpload != nil {
		s.onUpload()
	}
	return s.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	results  []types.CycleResult
	failures []types.Channel
}

func (m *recordingMetrics) RecordCycle(_ context.Context, result types.CycleResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *recordingMetrics) RecordChannelFailure(_ context.Context, channel types.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, channel)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func testSettings(emailEnabled bool) *config.Settings {
	return &config.Settings{
		DeviceName:       "lab-1",
		CO2Limit:         ptr(1000),
		TemperatureLimit: ptr(30),
		HumidityLimit:    ptr(70),
		Email: config.EmailSettings{
			Enabled:    emailEnabled,
			SMTPServer: "smtp.example.com",
			FromAddr:   "sensor@example.com",
			ToAddr:     "ops@example.com",
		},
	}
}

func reading(co2, temp, hum float64) acquireResult {
	return acquireResult{reading: types.Reading{
		CO2PPM:       co2,
		TemperatureC: temp,
		HumidityPct:  hum,
		CapturedAt:   testNow,
		SourceLabel:  "CSV row 1",
		Location:     "data.csv",
	}}
}

func failure(code types.ErrorCode) acquireResult {
	return acquireResult{err: types.NewAppError(code, "acquisition failed", errors.New("boom"))}
}

type harness struct {
	source    *scriptedSource
	persister *recordingPersister
	notifier  *recordingNotifier
	sink      *recordingSink
	metrics   *recordingMetrics
}

func newHarness(results ...acquireResult) *harness {
	return &harness{
		source:    &scriptedSource{results: results},
		persister: &recordingPersister{},
		notifier:  &recordingNotifier{},
		sink:      &recordingSink{},
		metrics:   &recordingMetrics{},
	}
}

func (h *harness) loop(settings SettingsProvider, interval time.Duration) *Loop {
	l := New(Config{
		Device:    "lab-1",
		Interval:  interval,
		Source:    h.source,
		Settings:  settings,
		Persister: h.persister,
		Notifier:  h.notifier,
		Sink:      h.sink,
		Metrics:   h.metrics,
		Clock:     fixedClock{now: testNow},
	})
	n := 0
	l.newCycleID = func() string {
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
	return l
}

// ============================================================
// Tests
// ============================================================

func TestRunCycle_WarningDrivesAllChannels(t *testing.T) {
	h := newHarness(reading(1200, 25, 50))
	l := h.loop(newStaticSettings(testSettings(true)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))

	require.Len(t, h.persister.records, 1)
	rec := h.persister.records[0]
	assert.Equal(t, types.StatusWarning, rec.Status)
	assert.Equal(t, []string{"High CO2: 1200 ppm > 1000 ppm"}, rec.Warnings)
	assert.Equal(t, "lab-1", rec.Device)
	assert.Equal(t, "CSV row 1", rec.DataSource)
	assert.True(t, rec.UpdatedAt.Equal(testNow))

	require.Len(t, h.notifier.alerts, 1)
	assert.Equal(t, "lab-1", h.notifier.alerts[0].Device)
	assert.Equal(t, "ops@example.com", h.notifier.contacts[0].ToAddr)
	require.Len(t, h.notifier.alerts[0].Classification.Violations, 1)
	assert.Equal(t, types.DimensionCO2, h.notifier.alerts[0].Classification.Violations[0].Dimension)

	assert.Len(t, h.sink.readings, 1)
	assert.Equal(t, 1, h.source.commits)
	assert.Equal(t, []types.CycleResult{types.CycleOK}, h.metrics.results)
	assert.Empty(t, h.metrics.failures)
}

func TestRunCycle_NormalReadingDoesNotNotify(t *testing.T) {
	h := newHarness(reading(600, 22, 40))
	l := h.loop(newStaticSettings(testSettings(true)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))

	require.Len(t, h.persister.records, 1)
	assert.Equal(t, types.StatusNormal, h.persister.records[0].Status)
	assert.Empty(t, h.persister.records[0].Warnings)
	assert.Empty(t, h.notifier.alerts)
	assert.Len(t, h.sink.readings, 1)
}

func TestRunCycle_EmailDisabledSkipsNotify(t *testing.T) {
	h := newHarness(reading(1500, 35, 90))
	l := h.loop(newStaticSettings(testSettings(false)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))

	assert.Empty(t, h.notifier.alerts)
	assert.Equal(t, types.StatusWarning, h.persister.records[0].Status)
	assert.Len(t, h.sink.readings, 1)
}

func TestRunCycle_ChannelFailuresAreIsolated(t *testing.T) {
	h := newHarness(reading(1200, 31, 75))
	h.persister.err = types.NewAppError(types.ErrCodePersistIOFailure, "disk full", nil)
	h.notifier.err = types.NewAppError(types.ErrCodeNotifyAuthFailure, "bad credentials", nil)
	h.sink.err = types.NewAppError(types.ErrCodeUploadRejected, "ack 0", nil)
	l := h.loop(newStaticSettings(testSettings(true)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))

	assert.Len(t, h.persister.records, 1)
	assert.Len(t, h.notifier.alerts, 1)
	assert.Len(t, h.sink.readings, 1)
	assert.Equal(t, 1, h.source.commits, "cursor advances regardless of channel outcome")
	assert.Equal(t,
		[]types.Channel{types.ChannelPersist, types.ChannelNotify, types.ChannelUpload},
		h.metrics.failures)
	assert.Equal(t, []types.CycleResult{types.CycleOK}, h.metrics.results)
}

func TestRunCycle_AcquisitionFailureSkipsChannels(t *testing.T) {
	h := newHarness(failure(types.ErrCodeAcquisitionTimeout))
	l := h.loop(newStaticSettings(testSettings(true)), time.Millisecond)

	err := l.RunCycle(context.Background())

	assert.Equal(t, types.ErrCodeAcquisitionTimeout, types.CodeOf(err))
	assert.Empty(t, h.persister.records)
	assert.Empty(t, h.notifier.alerts)
	assert.Empty(t, h.sink.readings)
	assert.Zero(t, h.source.commits)
	assert.Equal(t, []types.CycleResult{types.CycleAcquisitionFailed}, h.metrics.results)
}

func TestRunCycle_ThresholdsReloadEachCycle(t *testing.T) {
	strict := testSettings(false)
	strict.CO2Limit = ptr(500)
	h := newHarness(reading(800, 20, 40), reading(800, 20, 40))
	l := h.loop(newStaticSettings(testSettings(false), strict), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))
	require.NoError(t, l.RunCycle(context.Background()))

	require.Len(t, h.persister.records, 2)
	assert.Equal(t, types.StatusNormal, h.persister.records[0].Status)
	assert.Equal(t, types.StatusWarning, h.persister.records[1].Status)
}

func TestRunCycle_IntervalReloadsEachCycle(t *testing.T) {
	slower := testSettings(false)
	slower.UpdateInterval = 30
	h := newHarness(reading(400, 20, 40), reading(400, 20, 40), failure(types.ErrCodeAcquisitionTransport))
	l := h.loop(newStaticSettings(testSettings(false), slower, testSettings(false)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))
	assert.Equal(t, time.Millisecond, l.interval, "an absent update_interval keeps the current one")

	require.NoError(t, l.RunCycle(context.Background()))
	assert.Equal(t, 30*time.Second, l.interval)

	require.Error(t, l.RunCycle(context.Background()))
	assert.Equal(t, 30*time.Second, l.interval)
}

func TestRunCycle_NoSettingsUsesDefaultThresholds(t *testing.T) {
	h := newHarness(reading(1001, 99, 99))
	l := h.loop(newStaticSettings(), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))

	require.Len(t, h.persister.records, 1)
	assert.Equal(t, []string{"High CO2: 1001 ppm > 1000 ppm"}, h.persister.records[0].Warnings)
	assert.Empty(t, h.notifier.alerts)
}

func TestRunCycle_CycleIDInContext(t *testing.T) {
	h := newHarness(reading(400, 20, 40), reading(400, 20, 40))
	l := h.loop(newStaticSettings(testSettings(false)), time.Millisecond)

	require.NoError(t, l.RunCycle(context.Background()))
	require.NoError(t, l.RunCycle(context.Background()))

	assert.Equal(t, []string{"cycle-1", "cycle-2"}, h.sink.cycleIDs)
}

func TestRun_StopsOnExhaustion(t *testing.T) {
	h := newHarness(reading(400, 20, 40), reading(500, 21, 41))
	l := h.loop(newStaticSettings(testSettings(false)), time.Millisecond)

	err := l.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, h.source.calls)
	assert.Len(t, h.persister.records, 2)
	assert.Equal(t, 2, h.source.commits)
}

func TestRun_ConsecutiveTransportFailuresKeepLastState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current_state.json")
	store := state.NewFileStore(path)

	h := newHarness(
		reading(700, 22, 45),
		failure(types.ErrCodeAcquisitionTransport),
		failure(types.ErrCodeAcquisitionTransport),
		failure(types.ErrCodeAcquisitionTransport),
	)
	l := New(Config{
		Device:    "lab-1",
		Interval:  time.Millisecond,
		Source:    h.source,
		Settings:  newStaticSettings(testSettings(false)),
		Persister: store,
		Sink:      h.sink,
		Metrics:   h.metrics,
		Clock:     fixedClock{now: testNow},
	})

	require.NoError(t, l.RunCycle(context.Background()))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	// Run continues through the transport failures and ends on exhaustion.
	require.NoError(t, l.Run(context.Background()))

	final, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(after), string(final))
	assert.Equal(t, 5, h.source.calls)
	assert.Equal(t, []types.CycleResult{
		types.CycleOK,
		types.CycleAcquisitionFailed,
		types.CycleAcquisitionFailed,
		types.CycleAcquisitionFailed,
		types.CycleAcquisitionFailed,
	}, h.metrics.results)
}

func TestRun_CancelInterruptsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(reading(400, 20, 40), reading(400, 20, 40))
	h.sink.onUpload = cancel
	l := h.loop(newStaticSettings(testSettings(false)), time.Hour)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	assert.Equal(t, 1, h.source.calls)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(reading(400, 20, 40))
	l := h.loop(newStaticSettings(testSettings(false)), time.Millisecond)

	require.NoError(t, l.Run(ctx))
	assert.Zero(t, h.source.calls)
}

func TestNew_Defaults(t *testing.T) {
	l := New(Config{Source: &scriptedSource{}, Settings: newStaticSettings(), Persister: &recordingPersister{}})

	assert.Equal(t, config.DefaultUpdateInterval, l.interval)
	assert.NotNil(t, l.sink)
	assert.NotNil(t, l.metrics)
	assert.NotNil(t, l.clock)
}
