package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stockpulse/config"
	"stockpulse/models"
)

type stubProducer struct {
	symbols []string
	calls   int64
}

func (p *stubProducer) Snapshot(ctx context.Context) models.MarketSnapshot {
	atomic.AddInt64(&p.calls, 1)
	snapshot := make(models.MarketSnapshot, len(p.symbols))
	for _, s := range p.symbols {
		price := 100.0
		snapshot[s] = models.QuoteRecord{
			Symbol:       s,
			Name:         s + " Inc.",
			CurrentPrice: &price,
			History:      []models.HistoryPoint{},
		}
	}
	return snapshot
}

func testServer(t *testing.T, interval time.Duration) (*httptest.Server, *stubProducer) {
	t.Helper()
	cfg := &config.Config{
		Stockpulse: config.StockpulseConfig{Name: "StockPulse", Version: "test"},
		Server: config.ServerConfig{
			BroadcastInterval: interval,
			ShutdownTimeout:   time.Second,
		},
		Market: config.MarketConfig{Symbols: []string{"AAPL", "^GSPC"}},
	}
	producer := &stubProducer{symbols: cfg.Market.Symbols}
	srv := NewServer(cfg, producer)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return ts, producer
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestNewServerGinMode(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{BroadcastInterval: time.Second},
	}

	t.Setenv("APP_ENV", config.EnvironmentProduction)
	NewServer(cfg, &stubProducer{})
	if gin.Mode() != gin.ReleaseMode {
		t.Errorf("production must run in release mode, got %s", gin.Mode())
	}

	t.Setenv("APP_ENV", config.EnvironmentDevelopment)
	NewServer(cfg, &stubProducer{})
	if gin.Mode() != gin.DebugMode {
		t.Errorf("development must run in debug mode, got %s", gin.Mode())
	}
}

func TestMarketDataEndpoint(t *testing.T) {
	ts, _ := testServer(t, time.Second)

	resp, err := http.Get(ts.URL + "/api/market-data")
	if err != nil {
		t.Fatalf("GET market-data: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("CORS origin header missing, got %q", origin)
	}

	var snapshot map[string]models.QuoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("unexpected snapshot size: %d", len(snapshot))
	}
	if record, ok := snapshot["^GSPC"]; !ok || record.Symbol != "^GSPC" {
		t.Fatalf("index symbol missing or wrong: %+v", snapshot)
	}
}

func TestPreflightAllowed(t *testing.T) {
	ts, _ := testServer(t, time.Second)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/market-data", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected preflight status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") != "*" {
		t.Errorf("methods header not permissive")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := testServer(t, time.Second)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "StockPulse" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStreamSession(t *testing.T) {
	interval := 100 * time.Millisecond
	ts, _ := testServer(t, interval)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First message arrives without waiting out a broadcast interval.
	conn.SetReadDeadline(time.Now().Add(interval / 2))
	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("first message not prompt: %v", err)
	}

	var snapshot map[string]models.QuoteRecord
	if err := json.Unmarshal(first, &snapshot); err != nil {
		t.Fatalf("decode pushed snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("unexpected pushed snapshot size: %d", len(snapshot))
	}

	// The next message only lands after the broadcast interval.
	firstAt := time.Now()
	conn.SetReadDeadline(time.Now().Add(2 * interval))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("second message: %v", err)
	}
	if elapsed := time.Since(firstAt); elapsed < interval-20*time.Millisecond {
		t.Errorf("second push arrived after %v, want at least %v", elapsed, interval)
	}
}

func TestStreamDisconnectLeavesPullUnaffected(t *testing.T) {
	ts, producer := testServer(t, 50*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("first message: %v", err)
	}
	conn.Close()

	// Give the session loop time to observe the disconnect, then confirm the
	// pull endpoint still serves fresh snapshots.
	time.Sleep(150 * time.Millisecond)
	settled := atomic.LoadInt64(&producer.calls)
	time.Sleep(150 * time.Millisecond)
	if after := atomic.LoadInt64(&producer.calls); after > settled+1 {
		t.Errorf("session loop still producing after disconnect: %d -> %d", settled, after)
	}

	resp, err := http.Get(ts.URL + "/api/market-data")
	if err != nil {
		t.Fatalf("GET after disconnect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pull endpoint affected by stream disconnect: %d", resp.StatusCode)
	}
}
