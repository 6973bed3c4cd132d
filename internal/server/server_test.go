package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/database"
	"github.com/dukerupert/tvtime/internal/gateway"
	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/store"
	ws "github.com/dukerupert/tvtime/internal/websocket"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	hub := ws.NewHub(logger)
	gw := gateway.New(store.NewKVStore(db), nil, collector, logger)

	now := func() time.Time { return time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC) }
	a, err := app.New(app.Config{Location: time.UTC, Now: now}, gw, hub, collector, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ts := httptest.NewServer(New(a, hub, reg, logger).Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

type personJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	TimeBalance      int    `json:"timeBalance"`
	FormattedBalance string `json:"formatted_balance"`
}

func createChild(t *testing.T, base, name string) personJSON {
	t.Helper()
	resp, data := do(t, "POST", base+"/api/children", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create child: status %d body %s", resp.StatusCode, data)
	}
	var p personJSON
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode child: %v", err)
	}
	return p
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)
	resp, data := do(t, "GET", ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, data)
	}
}

func TestChildrenLifecycle(t *testing.T) {
	ts := setupServer(t)
	p := createChild(t, ts.URL, "  Ann ")
	if p.Name != "Ann" || p.TimeBalance != 0 || p.FormattedBalance != "0m" {
		t.Errorf("created = %+v", p)
	}

	resp, data := do(t, "POST", ts.URL+"/api/children/"+p.ID+"/time", map[string]any{"direction": "increase", "amount": 90})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("adjust: %d %s", resp.StatusCode, data)
	}
	var adjusted personJSON
	json.Unmarshal(data, &adjusted)
	if adjusted.TimeBalance != 90 || adjusted.FormattedBalance != "1h 30m" {
		t.Errorf("adjusted = %+v", adjusted)
	}

	resp, data = do(t, "POST", ts.URL+"/api/children/"+p.ID+"/time", map[string]any{"direction": "decrease", "amount": 500})
	json.Unmarshal(data, &adjusted)
	if resp.StatusCode != http.StatusOK || adjusted.TimeBalance != 0 {
		t.Errorf("decrease below zero = %d %+v", resp.StatusCode, adjusted)
	}

	resp, data = do(t, "GET", ts.URL+"/api/children", nil)
	var list []personJSON
	json.Unmarshal(data, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("list = %d %s", resp.StatusCode, data)
	}

	resp, _ = do(t, "DELETE", ts.URL+"/api/children/"+p.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = do(t, "DELETE", ts.URL+"/api/children/"+p.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestChildrenValidation(t *testing.T) {
	ts := setupServer(t)
	p := createChild(t, ts.URL, "Ann")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"blank name", "POST", "/api/children", map[string]string{"name": "   "}, http.StatusBadRequest},
		{"duplicate name", "POST", "/api/children", map[string]string{"name": "ann"}, http.StatusConflict},
		{"bad json", "POST", "/api/children", "not an object", http.StatusBadRequest},
		{"negative amount", "POST", "/api/children/" + p.ID + "/time", map[string]any{"direction": "increase", "amount": -5}, http.StatusBadRequest},
		{"bad direction", "POST", "/api/children/" + p.ID + "/time", map[string]any{"direction": "sideways", "amount": 5}, http.StatusBadRequest},
		{"unknown person", "POST", "/api/children/nobody/time", map[string]any{"direction": "increase", "amount": 5}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, tt.method, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.want, data)
			}
		})
	}
}

func TestChoresAndGrant(t *testing.T) {
	ts := setupServer(t)
	p := createChild(t, ts.URL, "Ann")

	resp, data := do(t, "POST", ts.URL+"/api/chores", map[string]any{"name": "Dishes", "time": 15})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create chore: %d %s", resp.StatusCode, data)
	}
	var chore struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Time int    `json:"time"`
	}
	json.Unmarshal(data, &chore)

	resp, _ = do(t, "POST", ts.URL+"/api/chores", map[string]any{"name": "Laundry", "time": 7})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid time status = %d, want 400", resp.StatusCode)
	}
	resp, _ = do(t, "POST", ts.URL+"/api/chores", map[string]any{"name": "dishes", "time": 5})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate chore status = %d, want 409", resp.StatusCode)
	}

	resp, data = do(t, "PUT", ts.URL+"/api/chores/"+chore.ID, map[string]any{"name": "Dishes", "time": 30})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update own name: %d %s", resp.StatusCode, data)
	}

	resp, data = do(t, "POST", ts.URL+"/api/children/"+p.ID+"/chores/"+chore.ID, nil)
	var granted personJSON
	json.Unmarshal(data, &granted)
	if resp.StatusCode != http.StatusOK || granted.TimeBalance != 30 {
		t.Errorf("grant = %d %s", resp.StatusCode, data)
	}

	resp, _ = do(t, "POST", ts.URL+"/api/children/"+p.ID+"/chores/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("grant unknown chore status = %d, want 404", resp.StatusCode)
	}

	resp, _ = do(t, "DELETE", ts.URL+"/api/chores/"+chore.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete chore status = %d", resp.StatusCode)
	}
	resp, _ = do(t, "PUT", ts.URL+"/api/chores/"+chore.ID, map[string]any{"name": "Dishes", "time": 30})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("update deleted chore status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusFamilyAndBonus(t *testing.T) {
	ts := setupServer(t)

	resp, data := do(t, "POST", ts.URL+"/api/bonus/check", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"first_run"`) {
		t.Errorf("bonus check = %d %s", resp.StatusCode, data)
	}

	resp, data = do(t, "GET", ts.URL+"/api/status", nil)
	var st app.Status
	json.Unmarshal(data, &st)
	if resp.StatusCode != http.StatusOK || st.Mode != gateway.ModeLocal || st.LastMidnightCheck != "2026-02-05" {
		t.Errorf("status = %d %s", resp.StatusCode, data)
	}

	resp, _ = do(t, "PUT", ts.URL+"/api/family", map[string]string{"family_id": " "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank family status = %d, want 400", resp.StatusCode)
	}
	resp, _ = do(t, "PUT", ts.URL+"/api/family", map[string]string{"family_id": "fam-2"})
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("join family status = %d, want 202", resp.StatusCode)
	}
	_, data = do(t, "GET", ts.URL+"/api/family", nil)
	if strings.Contains(string(data), "fam-2") {
		t.Errorf("running family switched before restart: %s", data)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupServer(t)
	do(t, "POST", ts.URL+"/api/bonus/check", nil)

	resp, data := do(t, "GET", ts.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `tvtime_bonus_checks_total{result="first_run"} 1`) {
		t.Errorf("metrics missing bonus check counter:\n%s", data)
	}
}

func TestWebSocketNotifiesOnChange(t *testing.T) {
	ts := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Registration happens after the upgrade; retry the write until a
	// message arrives.
	got := make(chan ws.Message, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ws.Message
		if json.Unmarshal(data, &msg) == nil {
			got <- msg
		}
	}()

	names := []string{"Ann", "Ben", "Cat", "Dan", "Eve"}
	for i := 0; ; i++ {
		if i < len(names) {
			createChild(t, ts.URL, names[i])
		}
		select {
		case msg := <-got:
			if msg.Type != "children_created" {
				t.Errorf("message type = %q, want children_created", msg.Type)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no websocket notification received")
		}
	}
}
