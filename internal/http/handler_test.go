package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"masterpay/internal/clock"
	"masterpay/internal/ledger"
	"masterpay/internal/models"
	"masterpay/internal/resolver"
	"masterpay/internal/store"
)

type fakeGateway struct {
	mu         sync.Mutex
	captureErr error
	captures   int
}

func (g *fakeGateway) Capture(ctx context.Context, p *models.EscrowPayment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captureErr != nil {
		return "", g.captureErr
	}
	g.captures++
	return fmt.Sprintf("cap-%d", g.captures), nil
}

func (g *fakeGateway) Release(ctx context.Context, p *models.EscrowPayment) error { return nil }
func (g *fakeGateway) Refund(ctx context.Context, p *models.EscrowPayment) error  { return nil }

type apiEnv struct {
	server  *httptest.Server
	gateway *fakeGateway
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gw := &fakeGateway{}
	l := ledger.New(ledger.Config{
		Store:      store.NewMemory(),
		Gateway:    gw,
		Clock:      clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		FeePercent: decimal.NewFromInt(5),
		TTL:        30 * 24 * time.Hour,
		Dispatch:   func(fn func()) { fn() },
	})
	srv := NewServer(NewHandler(l, resolver.New(l)), nil)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return &apiEnv{server: ts, gateway: gw}
}

func (env *apiEnv) do(t *testing.T, method, path, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func (env *apiEnv) openPayment(t *testing.T) string {
	t.Helper()
	resp, body := env.do(t, http.MethodPost, "/escrow/payments", "client-1", map[string]any{
		"orderId":  "order-1",
		"masterId": "master-1",
		"amount":   "1000",
		"currency": "UAH",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open payment: status %d", resp.StatusCode)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("open payment: no id in response")
	}
	return id
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	resp, body := env.do(t, http.MethodPost, "/escrow/payments", "client-1", map[string]any{
		"orderId":  "order-1",
		"masterId": "master-1",
		"amount":   "1000",
		"currency": "UAH",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	if body["status"] != "awaiting_client" {
		t.Errorf("status = %v, want awaiting_client", body["status"])
	}
	if body["platformFeeAmount"] != "50" {
		t.Errorf("platformFeeAmount = %v, want 50", body["platformFeeAmount"])
	}
	if body["masterReceiveAmount"] != "950" {
		t.Errorf("masterReceiveAmount = %v, want 950", body["masterReceiveAmount"])
	}
	id := body["id"].(string)

	resp, body = env.do(t, http.MethodPost, "/escrow/payments/"+id+"/confirm", "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}
	if body["status"] != "awaiting_master" {
		t.Errorf("status = %v, want awaiting_master", body["status"])
	}

	resp, body = env.do(t, http.MethodPost, "/escrow/payments/"+id+"/confirm-work", "master-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm-work: status %d", resp.StatusCode)
	}
	if body["status"] != "confirmed_by_master" {
		t.Errorf("status = %v, want confirmed_by_master", body["status"])
	}

	resp, body = env.do(t, http.MethodPost, "/escrow/payments/"+id+"/approve", "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}
	if body["status"] != "released_to_master" {
		t.Errorf("status = %v, want released_to_master", body["status"])
	}
	if body["releasedAt"] == nil || body["releasedAt"] == "" {
		t.Error("releasedAt missing from released payment")
	}
	if _, ok := body["refundedAt"]; ok {
		t.Error("refundedAt must be omitted for released payment")
	}

	resp, body = env.do(t, http.MethodGet, "/escrow/payments/"+id, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	if body["status"] != "released_to_master" {
		t.Errorf("fetched status = %v, want released_to_master", body["status"])
	}
}

func TestDisputeAndResolveOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	id := env.openPayment(t)

	if resp, _ := env.do(t, http.MethodPost, "/escrow/payments/"+id+"/confirm", "client-1", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/escrow/payments/"+id+"/dispute", "master-1", map[string]any{
		"reason": "client refuses to accept the work",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dispute: status %d", resp.StatusCode)
	}
	if body["status"] != "disputed" {
		t.Errorf("status = %v, want disputed", body["status"])
	}

	resp, body = env.do(t, http.MethodPost, "/escrow/payments/"+id+"/resolve", "", map[string]any{
		"decision":      "refund_to_client",
		"justification": "work was not completed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d", resp.StatusCode)
	}
	if body["status"] != "refunded_to_client" {
		t.Errorf("status = %v, want refunded_to_client", body["status"])
	}
	if body["refundedAt"] == nil || body["refundedAt"] == "" {
		t.Error("refundedAt missing from refunded payment")
	}
}

func TestErrorStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	id := env.openPayment(t)

	cases := []struct {
		name   string
		method string
		path   string
		userID string
		body   any
		want   int
	}{
		{"missing user id", http.MethodPost, "/escrow/payments/" + id + "/confirm", "", nil, http.StatusUnauthorized},
		{"wrong party", http.MethodPost, "/escrow/payments/" + id + "/confirm", "master-1", nil, http.StatusForbidden},
		{"invalid transition", http.MethodPost, "/escrow/payments/" + id + "/approve", "client-1", nil, http.StatusConflict},
		{"resolve non-disputed", http.MethodPost, "/escrow/payments/" + id + "/resolve", "", map[string]any{"decision": "refund_to_client"}, http.StatusConflict},
		{"unknown payment", http.MethodGet, "/escrow/payments/no-such-id", "", nil, http.StatusNotFound},
		{"bad amount", http.MethodPost, "/escrow/payments", "client-1", map[string]any{"orderId": "o2", "masterId": "m", "amount": "abc"}, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/escrow/payments", "client-1", map[string]any{"orderId": "o2", "masterId": "m", "amount": "-5"}, http.StatusBadRequest},
		{"bad decision", http.MethodPost, "/escrow/payments/" + id + "/resolve", "", map[string]any{"decision": "split"}, http.StatusBadRequest},
		{"dispute without reason", http.MethodPost, "/escrow/payments/" + id + "/dispute", "client-1", map[string]any{"reason": ""}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, tc.method, tc.path, tc.userID, tc.body)
			if resp.StatusCode != tc.want {
				t.Errorf("status %d, want %d (body %v)", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestGatewayFailureMapsToBadGateway(t *testing.T) {
	env := newAPIEnv(t)
	id := env.openPayment(t)

	env.gateway.mu.Lock()
	env.gateway.captureErr = fmt.Errorf("processor timeout")
	env.gateway.mu.Unlock()

	resp, _ := env.do(t, http.MethodPost, "/escrow/payments/"+id+"/confirm", "client-1", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status %d, want 502", resp.StatusCode)
	}

	// State must not have advanced.
	_, body := env.do(t, http.MethodGet, "/escrow/payments/"+id, "", nil)
	if body["status"] != "awaiting_client" {
		t.Errorf("status = %v, want awaiting_client", body["status"])
	}
}

func TestCancelBeforeFunding(t *testing.T) {
	env := newAPIEnv(t)
	id := env.openPayment(t)

	resp, body := env.do(t, http.MethodPost, "/escrow/payments/"+id+"/cancel", "client-1", map[string]any{
		"reason": "order withdrawn",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status %d", resp.StatusCode)
	}
	if body["status"] != "cancelled" {
		t.Errorf("status = %v, want cancelled", body["status"])
	}
}

func TestListPayments(t *testing.T) {
	env := newAPIEnv(t)
	id := env.openPayment(t)

	resp, _ := env.do(t, http.MethodGet, "/escrow/payments?orderId=order-1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list by order: status %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/escrow/payments?orderId=order-1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	defer res.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["id"] != id {
		t.Errorf("list by order = %v, want single payment %s", list, id)
	}

	resp, _ = env.do(t, http.MethodGet, "/escrow/payments?userId=client-1&role=client", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list by user: status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/escrow/payments?userId=client-1&role=owner", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role: status %d, want 400", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/escrow/payments", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no filter: status %d, want 400", resp.StatusCode)
	}
}
