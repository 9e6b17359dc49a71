package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qintegrity/app"
	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/stats"
	apperrors "qintegrity/internal/errors"
	"qintegrity/internal/testkit"
	"qintegrity/ports"
)

type stubChart struct {
	last ports.ChartOptions
}

func (c *stubChart) Render(ctx context.Context, w io.Writer, matrix *experiment.DetectionMatrix, opts ports.ChartOptions) error {
	c.last = opts
	_, err := w.Write([]byte("\x89PNG"))
	return err
}

type fixture struct {
	server *Server
	chart  *stubChart
	ledger *testkit.InMemoryLedgerAdapter
	name   string
	runID  core.RunID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kit := testkit.NewTestKit()
	ctx := context.Background()

	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}, 40))
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1}, 30))
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 1, SignatureQubits: 2}, 45))
	name := experiment.MatrixFileName(0, 50)
	require.NoError(t, kit.MatrixRepository().Save(ctx, name, m))

	runID := core.NewRunID()
	ledger := kit.LedgerAdapter()
	require.NoError(t, ledger.CreateRun(ctx, ports.RunRecord{ID: runID, MaxTotalQubits: 3, NumTrials: 50, NumRepetitions: 1, Status: ports.RunStatusRunning}))
	require.NoError(t, ledger.RecordConfig(ctx, ports.ConfigResult{
		RunID: runID,
		ConfigSummary: experiment.ConfigSummary{
			Config:     experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1},
			Detections: 40,
			Trials:     50,
			Interval:   stats.Wilson(40, 50, 1.96),
		},
	}))
	require.NoError(t, ledger.FinishRun(ctx, runID, ports.RunStatusComplete))

	chart := &stubChart{}
	reports := app.NewReportService(kit.MatrixRepository(), chart, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	return &fixture{
		server: NewServer(reports, ledger, nil, zerolog.Nop()),
		chart:  chart,
		ledger: ledger,
		name:   name,
		runID:  runID,
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestListMatrices(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/matrices")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, []interface{}{f.name}, body["matrices"])
}

func TestMatrixIntervals(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/matrices/"+f.name+"?z=1.96")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Z     float64            `json:"z"`
		Cells []app.CellInterval `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Cells, 3)
	assert.Equal(t, 1.96, body.Z)
	assert.Equal(t, 40, body.Cells[0].Detections)
	assert.InDelta(t, 0.6696, body.Cells[0].Interval.Lower, 1e-3)
	assert.InDelta(t, 0.8876, body.Cells[0].Interval.Upper, 1e-3)
}

func TestMatrixErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/matrices/"+experiment.MatrixFileName(7, 50))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.get(t, "/api/matrices/results.csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/api/matrices/"+f.name+"?z=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatrixChart(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/matrices/"+f.name+"/chart?z=2.5&dpi=72")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String())
	assert.Equal(t, 2.5, f.chart.last.Z)
	assert.Equal(t, 72, f.chart.last.DPI)
	assert.Equal(t, 50, f.chart.last.NumTrials)
}

func TestMatrixChartRejectsUnboundedOverrides(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/matrices/"+f.name+"/chart?dpi=100000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decode(t, rec)["code"])

	rec = f.get(t, "/api/matrices/"+f.name+"/chart?trials=10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/api/matrices/"+f.name+"/chart?dpi=1200&trials=45")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1200, f.chart.last.DPI)
}

func TestAggregate(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/aggregate?confidence=0.9")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, 0.9, body["confidence"])
	assert.Len(t, body["configs"], 3)

	rec = f.get(t, "/api/aggregate?confidence=1.5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = f.get(t, "/api/runs/"+f.runID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ports.RunStatusComplete, decode(t, rec)["status"])

	rec = f.get(t, "/api/runs/"+f.runID.String()+"/configs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = f.get(t, "/api/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/api/runs/"+core.NewRunID().String()+"/configs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesWithoutLedgerOrHub(t *testing.T) {
	kit := testkit.NewTestKit()
	reports := app.NewReportService(kit.MatrixRepository(), &stubChart{}, nil, t.TempDir(), ports.ChartOptions{}, zerolog.Nop())
	srv := NewServer(reports, nil, nil, zerolog.Nop())

	for _, path := range []string{"/api/runs", "/api/events"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestProgressBroadcaster(t *testing.T) {
	hub := NewSSEHub(zerolog.Nop())
	defer hub.Close()

	events, cancel := hub.Subscribe(DefaultTopic)
	defer cancel()
	require.Eventually(t, func() bool { return hub.ClientCount(DefaultTopic) == 1 }, time.Second, 5*time.Millisecond)

	b := NewProgressBroadcaster(hub, "")
	b.ConfigCompleted(experiment.ConfigSummary{
		Config:     experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1},
		Detections: 30,
		Trials:     50,
	})

	select {
	case ev := <-events:
		assert.Equal(t, "config_completed", ev.EventType)
		assert.Equal(t, 2, ev.Data["data_qubits"])
		assert.Equal(t, 0.6, ev.Data["rate"])
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	other, cancelOther := hub.Subscribe("other")
	defer cancelOther()
	require.Eventually(t, func() bool { return hub.ClientCount("other") == 1 }, time.Second, 5*time.Millisecond)

	m, err := experiment.NewDetectionMatrix(2)
	require.NoError(t, err)
	b.RepetitionCompleted(&experiment.SweepResult{RunID: core.NewRunID(), Repetition: 1, NumTrials: 50, Matrix: m})

	select {
	case ev := <-events:
		assert.Equal(t, "repetition_completed", ev.EventType)
		assert.Equal(t, 1, ev.Data["repetition"])
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other topic: %v", ev)
	default:
	}
}
