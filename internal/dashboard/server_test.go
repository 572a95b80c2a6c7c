package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb-scanner/arbitrage"
	"arb-scanner/config"
	"arb-scanner/internal/scanner"
)

type fakeReports struct {
	report *scanner.Report
}

func (f *fakeReports) Latest() (scanner.Report, bool) {
	if f.report == nil {
		return scanner.Report{}, false
	}
	return *f.report, true
}

type settingsUpdater struct {
	settings *scanner.Settings
}

func (u settingsUpdater) ApplyParameters(category string, params map[string]interface{}) error {
	if category != "scan" {
		return fmt.Errorf("no applier registered for category: %s", category)
	}
	return u.settings.ApplyParameters(params)
}

func newTestServer(t *testing.T, reports *fakeReports, health func() error) (*Server, *scanner.Settings) {
	t.Helper()
	settings, err := scanner.NewSettings(config.ScanConfig{ThresholdPct: 0.5, IntervalSec: 60, Policy: "directional"})
	require.NoError(t, err)
	return NewServer(Options{
		Reports:  reports,
		Settings: settings,
		Updater:  settingsUpdater{settings: settings},
		Health:   health,
	}), settings
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReports{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv, _ = newTestServer(t, &fakeReports{}, func() error { return errors.New("scanner not running") })
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "scanner not running")
}

func TestReportEndpoint(t *testing.T) {
	reports := &fakeReports{}
	srv, _ := newTestServer(t, reports, nil)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	reports.report = &scanner.Report{CycleID: "c-1", Status: scanner.StatusOK, Opportunities: []arbitrage.Opportunity{}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got scanner.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "c-1", got.CycleID)
	assert.Equal(t, scanner.StatusOK, got.Status)
}

func TestSettingsEndpoints(t *testing.T) {
	srv, settings := newTestServer(t, &fakeReports{}, nil)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threshold_pct":0.5,"interval_sec":60,"policy":"directional"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings",
		strings.NewReader(`{"threshold_pct":1.25,"policy":"signed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.25, settings.Snapshot().ThresholdPct)
	assert.Equal(t, arbitrage.PolicySigned, settings.Snapshot().Policy)
	assert.Equal(t, 60, settings.Snapshot().IntervalSec)
}

func TestPutSettingsRejectsBadInput(t *testing.T) {
	srv, settings := newTestServer(t, &fakeReports{}, nil)
	h := srv.Handler()

	cases := []struct {
		body string
		code int
	}{
		{`not json`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`{"watch_list":["SOL/USDT"]}`, http.StatusBadRequest},
		{`{"interval_sec":1}`, http.StatusUnprocessableEntity},
		{`{"policy":"greedy"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(tc.body)))
		assert.Equal(t, tc.code, rec.Code, tc.body)
	}
	assert.Equal(t, scanner.SettingsSnapshot{ThresholdPct: 0.5, IntervalSec: 60, Policy: arbitrage.PolicyDirectional}, settings.Snapshot())
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReports{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/report", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, scanner.Report) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string         `json:"type"`
		Payload scanner.Report `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Type, msg.Payload
}

func TestHubPushesReports(t *testing.T) {
	reports := &fakeReports{report: &scanner.Report{CycleID: "initial", Status: scanner.StatusOK}}
	counts := make(chan int, 16)
	hub := NewHub(reports, nil, func(n int) { counts <- n })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := make(chan scanner.Report, 1)
	go hub.Run(ctx, feed)

	srv, _ := newTestServer(t, reports, nil)
	srv.hub = hub
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	typ, r := readEnvelope(t, conn)
	assert.Equal(t, "scan_report", typ)
	assert.Equal(t, "initial", r.CycleID)

	select {
	case n := <-counts:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("client count not reported")
	}

	feed <- scanner.Report{CycleID: "next", Status: scanner.StatusPartial}
	_, r = readEnvelope(t, conn)
	assert.Equal(t, "next", r.CycleID)
	assert.Equal(t, scanner.StatusPartial, r.Status)
	assert.Equal(t, 1, hub.ClientCount())
}
