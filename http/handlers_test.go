package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cropadvisor/advisor"
	"cropadvisor/dataset"
	"cropadvisor/monitoring"
)

const cropsCSV = `N,P,K,temperature,humidity,ph,rainfall,label
90,42,43,20.87,82.00,6.50,202.93,rice
85,58,41,21.77,80.31,7.03,226.65,rice
71,54,16,22.61,63.69,5.74,87.75,maize
61,44,17,26.10,71.57,6.93,102.26,maize
40,72,77,17.02,16.98,7.48,88.55,chickpea
23,72,84,19.02,17.13,6.92,79.92,chickpea
`

func newTestHandler(t *testing.T) (http.Handler, *monitoring.Metrics) {
	t.Helper()
	table, err := dataset.Read(strings.NewReader(cropsCSV))
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	svc, err := advisor.Build(table, advisor.Options{CacheSize: 16, Metrics: metrics})
	require.NoError(t, err)

	hub := monitoring.NewExploreHub(svc.Explore, []string{"*"}, zap.NewNop(), metrics)
	handlers := NewHandlers(svc, hub, zap.NewNop(), metrics)
	config := DefaultServerConfig()
	config.MaxBodyBytes = 4096
	return NewHandler(config, handlers, zap.NewNop()), metrics
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestHealthHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/api/health", "")
	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if got := decode(t, rr)["status"]; got != "ok" {
		t.Errorf("unexpected status: %v", got)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Errorf("missing %s header", RequestIDHeader)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing security headers")
	}
}

func TestCropsHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/api/crops", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload cropsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, []string{"rice", "maize", "chickpea"}, payload.Labels)
	assert.Equal(t, 3, payload.Count)
	assert.Equal(t, 2, payload.Counts["maize"])
}

func TestRecommendHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"N":90,"P":42,"K":43,"temperature":20.87,"humidity":82,"ph":6.5,"rainfall":202.93}`
	rr := do(t, h, http.MethodPost, "/api/recommend", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	payload := decode(t, rr)
	assert.Equal(t, "rice", payload["label"])
	assert.Equal(t, 1.0, payload["confidence"])
	assert.NotEmpty(t, payload["request_id"])
	practice := payload["practice"].(map[string]any)
	assert.Equal(t, true, practice["available"])

	rr = do(t, h, http.MethodPost, "/api/recommend", body)
	assert.Equal(t, true, decode(t, rr)["cached"])
}

func TestRecommendHandlerRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{name: "missing field", body: `{"N":90,"P":42,"K":43,"temperature":20,"humidity":82,"rainfall":200}`, status: http.StatusBadRequest, field: "ph"},
		{name: "string value", body: `{"N":"high","P":42,"K":43,"temperature":20,"humidity":82,"ph":6.5,"rainfall":200}`, status: http.StatusBadRequest, field: "N"},
		{name: "out of bounds", body: `{"N":90,"P":42,"K":43,"temperature":20,"humidity":82,"ph":15,"rainfall":200}`, status: http.StatusUnprocessableEntity},
		{name: "malformed", body: `{"N":`, status: http.StatusBadRequest},
		{name: "too large", body: `{"pad":"` + strings.Repeat("x", 8192) + `"}`, status: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/recommend", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.field != "" {
				assert.Equal(t, tt.field, decode(t, rr)["field"])
			}
		})
	}
}

func TestRangesHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/api/dataset/ranges?labels=rice", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload rangesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, dataset.Bounds{Min: 20.87, Max: 21.77}, payload.Bounds[dataset.Temperature])

	rr = do(t, h, http.MethodGet, "/api/dataset/ranges", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, dataset.Bounds{Min: 17.02, Max: 26.10}, payload.Bounds[dataset.Temperature])

	rr = do(t, h, http.MethodGet, "/api/dataset/ranges?labels=coffee", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFilterHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/api/dataset/filter",
		`{"labels":["rice","chickpea"],"ranges":{"N":{"min":30,"max":95}}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res advisor.FilterResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{"rice", "chickpea"}, res.Labels)
	assert.Equal(t, dataset.Bounds{Min: 40, Max: 90}, res.Bounds[dataset.Nitrogen])

	rr = do(t, h, http.MethodPost, "/api/dataset/filter", `{"labels":["rice"],"ranges":{"moisture":{"min":0,"max":1}}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/dataset/filter", `{"labels":["rice"],"ranges":{"ph":{"min":9,"max":1}}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExploreHandler(t *testing.T) {
	h, metrics := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/api/explore", `{"selected":["maize"],"axis":"humidity"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	payload := decode(t, rr)
	assert.Equal(t, 2.0, payload["point_count"])
	assert.Equal(t, "humidity", payload["axis"])

	rr = do(t, h, http.MethodPost, "/api/explore", `{"selected":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Please select at least one crop to display the graphs.", decode(t, rr)["warning"])

	rr = do(t, h, http.MethodPost, "/api/explore", `{"selected":["rice"],"axis":"temperature"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cropadvisor_explore_queries_total{status="empty",transport="http"} 1`)
	assert.NotNil(t, metrics)
}

func TestPracticesHandlers(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/api/practices", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listing advisor.PracticeListing
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Equal(t, "rice", listing.Default)
	assert.Len(t, listing.Crops, 3)

	rr = do(t, h, http.MethodGet, "/api/practices/lentil", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["available"])

	rr = do(t, h, http.MethodGet, "/api/practices/coffee", "")
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decode(t, rr)
	assert.Equal(t, false, payload["available"])
	assert.Contains(t, payload["message"], "not available")
}

func TestModelAndHistoryHandlers(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/api/model", "")
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decode(t, rr)
	assert.Equal(t, 6.0, payload["samples"])

	rr = do(t, h, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type panicService struct{ Service }

func (panicService) Labels() []string { panic("boom") }

func TestRecoveryMiddleware(t *testing.T) {
	handlers := NewHandlers(panicService{}, nil, zap.NewNop(), nil)
	h := NewHandler(DefaultServerConfig(), handlers, zap.NewNop())

	rr := do(t, h, http.MethodGet, "/api/crops", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://farm.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/recommend", nil)
	req.Header.Set("Origin", "https://farm.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://farm.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/crops", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	h := TimeoutMiddleware(20 * time.Millisecond)(slow)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/crops", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestExploreWebSocketThroughMiddleware(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/explore"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"selected": []string{"rice"}, "axis": "P"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg monitoring.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, monitoring.ViewMessage, msg.Type)
	require.NotNil(t, msg.View)
	assert.Equal(t, 2, msg.View.PointCount)
}

func TestServerStartStop(t *testing.T) {
	handlers := NewHandlers(panicService{}, nil, zap.NewNop(), nil)
	config := DefaultServerConfig()
	config.Port = 0
	srv := NewServer(config, handlers, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
