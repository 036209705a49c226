package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"execution-core/internal/events"
	"execution-core/internal/order"
	"execution-core/pkg/venue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testJWTSecret = "test-secret"
	testAPIKey    = "test-api-key"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := order.DefaultConfig()
	cfg.RetryInitialDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	cfg.ValidateLiquidity = false

	paper := venue.NewPaper(venue.PaperConfig{SellAllAmount: 100})
	paper.SetPrice("TOKEN_A", 2.0)

	bus := events.NewBus()
	orch := order.NewOrchestrator(cfg, paper, order.WithBus(bus))
	t.Cleanup(orch.Shutdown)

	return NewServer(orch, bus, nil, SystemMeta{Venue: "paper", DryRun: true, Version: "test"}, testJWTSecret, testAPIKey)
}

func doJSON(s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func issueTestToken(t *testing.T, s *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewBufferString(`{"client_id":"tester"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("token issue status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("token response unparseable: %v %s", err, w.Body.String())
	}
	return resp.Token
}

func TestHealthUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" || resp["venue"] != "paper" {
		t.Fatalf("body=%v", resp)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/orders", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d, want 401", w.Code)
	}

	w = doJSON(s, http.MethodGet, "/api/orders", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status=%d, want 401", w.Code)
	}

	expired, err := GenerateToken("tester", testJWTSecret, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	w = doJSON(s, http.MethodGet, "/api/orders", expired, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status=%d, want 401", w.Code)
	}

	wrongKey, err := GenerateToken("tester", "other-secret", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	w = doJSON(s, http.MethodGet, "/api/orders", wrongKey, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status=%d, want 401", w.Code)
	}
}

func TestIssueTokenRequiresAPIKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewBufferString(`{"client_id":"tester"}`))
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong api key: status=%d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewBufferString(`{}`))
	req.Header.Set("X-API-Key", testAPIKey)
	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing client_id: status=%d, want 400", w.Code)
	}
}

func TestBuyOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodPost, "/api/orders/buy", token,
		map[string]any{"asset_id": "TOKEN_A", "amount_usd": 50.0})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s, want 202", w.Code, w.Body.String())
	}
	var res order.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.OrderID == "" || res.Status != order.StatusPending {
		t.Fatalf("res=%+v, want PENDING with an id", res)
	}

	// poll the order until it resolves
	deadline := time.Now().Add(5 * time.Second)
	for {
		w = doJSON(s, http.MethodGet, "/api/orders/"+res.OrderID, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get order status=%d", w.Code)
		}
		var cur order.Result
		json.Unmarshal(w.Body.Bytes(), &cur)
		if cur.Status.Terminal() {
			if cur.Status != order.StatusFilled {
				t.Fatalf("terminal status=%s (%s), want FILLED", cur.Status, cur.ErrorMessage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("order never terminal, status=%s", cur.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// cancelling a filled order conflicts
	w = doJSON(s, http.MethodDelete, "/api/orders/"+res.OrderID, token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel filled: status=%d, want 409", w.Code)
	}
}

func TestBuyValidation(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodPost, "/api/orders/buy", token, map[string]any{"amount_usd": 10.0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing asset_id: status=%d, want 400", w.Code)
	}

	w = doJSON(s, http.MethodPost, "/api/orders/buy", token,
		map[string]any{"asset_id": "TOKEN_A", "amount_usd": -5.0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative amount: status=%d, want 400", w.Code)
	}
}

func TestSellEntireHolding(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodPost, "/api/orders/sell", token,
		map[string]any{"asset_id": "TOKEN_A", "amount_tokens": 0.0, "reason": "manual exit"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s, want 202", w.Code, w.Body.String())
	}
	var res order.Result
	json.Unmarshal(w.Body.Bytes(), &res)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cur, ok := s.Orch.OrderStatus(res.OrderID)
		if ok && cur.Status.Terminal() {
			if cur.Status != order.StatusFilled || cur.ExecutedAmount != 100 {
				t.Fatalf("result=%+v, want FILLED with the full holding of 100", cur)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sell never resolved")
}

func TestUnknownOrderRoutes(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodGet, "/api/orders/nope", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get unknown: status=%d, want 404", w.Code)
	}
	w = doJSON(s, http.MethodDelete, "/api/orders/nope", token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel unknown: status=%d, want 409", w.Code)
	}
}

func TestStatsAndDegradation(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodGet, "/api/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status=%d", w.Code)
	}
	var stats order.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats unmarshal: %v", err)
	}

	w = doJSON(s, http.MethodGet, "/api/degradation", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("degradation: status=%d", w.Code)
	}
}

func TestExecutionsWithoutJournal(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodGet, "/api/executions", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404 when the journal is disabled", w.Code)
	}
}

func TestPriceStrategyEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)

	w := doJSON(s, http.MethodGet, "/api/price-strategy/TOKEN_A", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp struct {
		AssetID  string `json:"asset_id"`
		Strategy string `json:"strategy"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.AssetID != "TOKEN_A" || resp.Strategy == "" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestShutdownReturns503(t *testing.T) {
	s := newTestServer(t)
	token := issueTestToken(t, s)
	s.Orch.Shutdown()

	w := doJSON(s, http.MethodPost, "/api/orders/buy", token,
		map[string]any{"asset_id": "TOKEN_A", "amount_usd": 10.0})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503 after shutdown", w.Code)
	}
}

func TestCurrentClientID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentClientID(c); got != "" {
		t.Fatalf("unauthenticated context id=%q, want empty", got)
	}
	c.Set(clientContextKey, "tester")
	if got := CurrentClientID(c); got != "tester" {
		t.Fatalf("id=%q, want tester", got)
	}
}
