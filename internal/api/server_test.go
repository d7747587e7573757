package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"afterhours/internal/auth"
	"afterhours/internal/game"
	"afterhours/internal/loop"
	"afterhours/internal/session"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger := game.NewLedger(nil)
	reg := session.NewRegistry(8, nil)
	gameLoop := loop.New(loop.Config{
		TickInterval: time.Hour, // never ticks during the test
		DayTicks:     64,
		NightTicks:   32,
		Seed:         1,
	}, ledger, reg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = gameLoop.Run(ctx) }()

	srv := New(nil, auth.NewService(nil), gameLoop, reg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func signup(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/auth/signup", "", map[string]string{"name": name, "password": "hunter2"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Token
}

func TestHealthz(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestSignupAndOrderFlow(t *testing.T) {
	ts := testServer(t)
	token := signup(t, ts, "ada")

	resp := postJSON(t, ts.URL+"/v1/orders", token, map[string]any{
		"symbol": "signal", "side": "buy", "quantity": 2,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("order status %d", resp.StatusCode)
	}
	var fill game.Fill
	if err := json.NewDecoder(resp.Body).Decode(&fill); err != nil {
		t.Fatalf("decode fill: %v", err)
	}
	if fill.Symbol != "SIGNAL" || fill.Quantity != 2 {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestOrderRequiresAuth(t *testing.T) {
	ts := testServer(t)
	resp := postJSON(t, ts.URL+"/v1/orders", "", map[string]any{"symbol": "SIGNAL", "side": "buy", "quantity": 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d want 401", resp.StatusCode)
	}
}

func TestOrderValidation(t *testing.T) {
	ts := testServer(t)
	token := signup(t, ts, "ada")

	tests := []struct {
		payload map[string]any
		want    int
	}{
		{map[string]any{"symbol": "bad!", "side": "buy", "quantity": 1}, http.StatusBadRequest},
		{map[string]any{"symbol": "NOSUCH", "side": "buy", "quantity": 1}, http.StatusNotFound},
		{map[string]any{"symbol": "SIGNAL", "side": "hold", "quantity": 1}, http.StatusBadRequest},
		{map[string]any{"symbol": "SIGNAL", "side": "buy", "quantity": 0}, http.StatusBadRequest},
		{map[string]any{"symbol": "SIGNAL", "side": "buy", "quantity": 1_000_000_000}, http.StatusBadRequest},
	}
	for i, tc := range tests {
		resp := postJSON(t, ts.URL+"/v1/orders", token, tc.payload)
		if resp.StatusCode != tc.want {
			t.Fatalf("case %d: status %d want %d", i, resp.StatusCode, tc.want)
		}
		resp.Body.Close()
	}
}

func TestCovertByDayIsConflict(t *testing.T) {
	ts := testServer(t)
	token := signup(t, ts, "ada")
	resp := postJSON(t, ts.URL+"/v1/covert", token, map[string]any{"kind": "sabotage", "symbol": "SIGNAL"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d want 409 (covert actions are night moves)", resp.StatusCode)
	}
}

func TestMarketAndLeaderboardArePublic(t *testing.T) {
	ts := testServer(t)
	for _, path := range []string{"/v1/market", "/v1/leaderboard"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestDuplicateSignupRejected(t *testing.T) {
	ts := testServer(t)
	signup(t, ts, "ada")
	resp := postJSON(t, ts.URL+"/v1/auth/signup", "", map[string]string{"name": "ada", "password": "hunter2"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d want 400", resp.StatusCode)
	}
}

func TestLoginIssuesWorkingToken(t *testing.T) {
	ts := testServer(t)
	signup(t, ts, "ada")

	resp := postJSON(t, ts.URL+"/v1/auth/login", "", map[string]string{"name": "ada", "password": "hunter2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	order := postJSON(t, ts.URL+"/v1/orders", out.Token, map[string]any{"symbol": "SIGNAL", "side": "buy", "quantity": 1})
	defer order.Body.Close()
	if order.StatusCode != http.StatusOK {
		t.Fatalf("order with login token: status %d", order.StatusCode)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"", ""},
		{"Bearer", ""},
	}
	for _, tc := range tests {
		if got := bearerToken(tc.header); got != tc.want {
			t.Fatalf("header %q: got %q want %q", tc.header, got, tc.want)
		}
	}
}
