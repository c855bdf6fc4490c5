package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	xlsx "github.com/360EntSecGroup-Skylar/excelize/v2"

	"whaling/internal/cache"
	"whaling/internal/core"
	"whaling/internal/debounce"
	"whaling/internal/events"
	"whaling/internal/view"
)

func fixtureRecords() []core.Record {
	return []core.Record{
		{Seq: 0, Location: "A", Year: 1995, WhaleCount: 2, HuntCount: 1},
		{Seq: 1, Location: "B", Year: 1995, WhaleCount: 3, HuntCount: 1},
		{Seq: 2, Location: "A", Year: 1996, WhaleCount: 5, HuntCount: 2},
	}
}

type testEnv struct {
	srv   *Server
	sync  *view.Synchronizer
	board *view.Board
	hub   *events.Hub
}

func newTestServer(t *testing.T, ready func(context.Context) error) testEnv {
	t.Helper()
	records := fixtureRecords()
	hub := events.NewHub(16)
	board := view.NewBoard(len(records), hub)
	sync := view.NewSynchronizer(records, board.Collaborators(), view.DefaultConfig(),
		view.WithScheduler(debounce.NewManualClock()))
	srv := NewServer(":0", Deps{Sync: sync, Board: board, Hub: hub, Ready: ready})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, sync: sync, board: board, hub: hub}
}

func (e testEnv) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestServer(t, nil)

	rr := env.do(http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Whaling in the Faroe Islands") || !strings.Contains(body, `min="1995"`) {
		t.Fatalf("index body missing heading or slider bounds: %s", body)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("security headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := env.do(http.MethodGet, "/nope", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	env := newTestServer(t, func(context.Context) error { return errors.New("db locked") })
	if rr := env.do(http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSelectYear(t *testing.T) {
	const form = "application/x-www-form-urlencoded"
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantBody    string
		wantYear    int
	}{
		{"wrong method", http.MethodGet, "", "", http.StatusMethodNotAllowed, "", 0},
		{"form slider", http.MethodPost, form, "year=1995", http.StatusOK, "5 whales", 1995},
		{"json chart", http.MethodPost, "application/json", `{"year":1996,"source":"chart"}`, http.StatusOK, `"year":1996`, 1996},
		{"unknown year", http.MethodPost, form, "year=1700", http.StatusUnprocessableEntity, "no records for year 1700", 0},
		{"not a number", http.MethodPost, form, "year=abc", http.StatusBadRequest, "invalid year", 0},
		{"unknown source", http.MethodPost, form, "year=1995&source=bogus", http.StatusBadRequest, "unknown selection source", 0},
		{"bad json", http.MethodPost, "application/json", `{"year":`, http.StatusBadRequest, "invalid JSON body", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t, nil)
			rr := env.do(tt.method, "/year", tt.contentType, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Fatalf("body %q missing %q", rr.Body.String(), tt.wantBody)
			}
			if tt.wantYear != 0 && env.sync.CurrentYear() != tt.wantYear {
				t.Fatalf("current year=%d want %d", env.sync.CurrentYear(), tt.wantYear)
			}
		})
	}
}

func TestTotalsAndRecords(t *testing.T) {
	env := newTestServer(t, nil)
	if err := env.sync.SetYear(context.Background(), 1996); err != nil {
		t.Fatal(err)
	}

	rr := env.do(http.MethodGet, "/api/totals", "", "")
	var totals totalsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if len(totals.Years) != 2 || totals.Years[0] != 1995 || totals.Whales[0] != 5 || totals.Whales[1] != 5 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.SelectedYear != 1996 || totals.SelectedIndex != 1 {
		t.Fatalf("selection = %d/%d", totals.SelectedYear, totals.SelectedIndex)
	}

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
		wantHidden int
	}{
		{"", http.StatusOK, 3, 0},
		{"?year=1995", http.StatusOK, 2, 1},
		{"?year=1996", http.StatusOK, 1, 2},
		{"?year=1700", http.StatusNotFound, 0, 0},
		{"?year=x", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run("records"+tt.query, func(t *testing.T) {
			rr := env.do(http.MethodGet, "/api/records"+tt.query, "", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp recordsResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Records) != tt.wantCount || resp.Hidden != tt.wantHidden {
				t.Fatalf("records=%d hidden=%d", len(resp.Records), resp.Hidden)
			}
		})
	}
}

func TestHarborAndPopup(t *testing.T) {
	env := newTestServer(t, nil)
	ctx := context.Background()
	if err := env.sync.SetYear(ctx, 1996); err != nil {
		t.Fatal(err)
	}

	rr := env.do(http.MethodGet, "/api/harbors/A", "", "")
	var harbor harborResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &harbor); err != nil {
		t.Fatalf("decode harbor: %v", err)
	}
	if len(harbor.Series) != 2 || harbor.SelectedIndex != 1 {
		t.Fatalf("unexpected harbor %+v", harbor)
	}
	if rr := env.do(http.MethodGet, "/api/harbors/Z", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown harbor status=%d", rr.Code)
	}
	if s := env.srv.harborCache.Stats(); s.Size != 1 {
		t.Fatalf("harbor cache size=%d", s.Size)
	}

	// B has no 1996 record
	if rr := env.do(http.MethodPost, "/api/popup", "application/json", `{"location":"B"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("popup B status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/api/popup", "application/json", `{"location":"A","action":"open"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("popup open status=%d", rr.Code)
	}
	if p := env.board.Snapshot().Popup; p == nil || p.Location != "A" || p.Year != 1996 {
		t.Fatalf("popup not open on A/1996: %+v", p)
	}

	// the open popup follows the selected year
	if err := env.sync.SetYear(ctx, 1995); err != nil {
		t.Fatal(err)
	}
	if p := env.board.Snapshot().Popup; p == nil || p.Year != 1995 || p.WhaleCount != 2 {
		t.Fatalf("popup not re-resolved: %+v", p)
	}

	form := url.Values{"action": {"close"}}.Encode()
	if rr := env.do(http.MethodPost, "/api/popup", "application/x-www-form-urlencoded", form); rr.Code != http.StatusOK {
		t.Fatalf("popup close status=%d", rr.Code)
	}
	if env.board.Snapshot().Popup != nil {
		t.Fatal("popup should be closed")
	}

	if rr := env.do(http.MethodPost, "/api/popup", "application/json", `{"location":"A","action":"spin"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status=%d", rr.Code)
	}
}

func TestExportTotals(t *testing.T) {
	env := newTestServer(t, nil)
	rr := env.do(http.MethodGet, "/export/totals.xlsx", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "whaling-totals.xlsx") {
		t.Fatalf("missing attachment header")
	}
	wb, err := xlsx.OpenReader(rr.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	rows, err := wb.GetRows("Totals")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][0] != "1995" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	env := newTestServer(t, nil)
	post := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/year", strings.NewReader("year=1995"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.9:4000"
		env.srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	for i := 0; i < 60; i++ {
		if code := post(); code != http.StatusOK {
			t.Fatalf("request %d status=%d", i+1, code)
		}
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	// reads are never limited
	if rr := env.do(http.MethodGet, "/api/totals", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET status=%d", rr.Code)
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	env := newTestServer(t, nil)
	if rr := env.do(http.MethodGet, "/api/records?year=../../etc/passwd", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				return strings.TrimPrefix(l, "event: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	if ev := next(); ev != "snapshot" {
		t.Fatalf("first event %q, want snapshot", ev)
	}
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := env.sync.SetYear(context.Background(), 1995); err != nil {
		t.Fatal(err)
	}
	if ev := next(); ev != view.EventLabels {
		t.Fatalf("event %q, want %s", ev, view.EventLabels)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("other clients are independent")
	}
	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Fatal("window should reset")
	}

	now = now.Add(time.Hour)
	rl.cleanupStaleEntries()
	if len(rl.clients) != 0 {
		t.Fatalf("stale clients kept: %d", len(rl.clients))
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.5:1234", "", "203.0.113.5"},
		{"untrusted forwarder ignored", "203.0.113.5:1234", "198.51.100.1", "203.0.113.5"},
		{"trusted proxy", "10.0.0.2:1234", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy bad header", "10.0.0.2:1234", "not-an-ip", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/totals", nil)

	writeJSON(rec, req, http.StatusOK, map[string]float64{"whales": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q for a failed encode", ct)
	}
}

func TestHarborCacheCleanupDropsExpiredSeries(t *testing.T) {
	env := newTestServer(t, nil)
	env.srv.harborCache = cache.NewLRU[string, []core.Record](harborCacheSize, time.Millisecond)

	if rr := env.do(http.MethodGet, "/api/harbors/A", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("harbor status=%d", rr.Code)
	}
	if s := env.srv.harborCache.Stats(); s.Size != 1 {
		t.Fatalf("cache size = %d, want 1", s.Size)
	}
	time.Sleep(5 * time.Millisecond)
	if n := env.srv.cleanHarborCache(); n != 1 {
		t.Fatalf("cleanup removed %d entries, want 1", n)
	}
	if s := env.srv.harborCache.Stats(); s.Size != 0 {
		t.Fatalf("cache size after cleanup = %d", s.Size)
	}
}
