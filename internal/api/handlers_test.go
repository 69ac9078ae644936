package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"greenhouse-monitor/internal/device"
	"greenhouse-monitor/internal/store"
	"greenhouse-monitor/internal/telemetry"
	"greenhouse-monitor/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopSession struct{}

func (nopSession) Close() {}

type nopDialer struct{}

func (nopDialer) Dial(_, _ string, _ func([]byte), _ func(error)) (device.Session, error) {
	return nopSession{}, nil
}

type nopHandler struct{}

func (nopHandler) Process(context.Context, string, []byte) {}

type testEnv struct {
	router    *gin.Engine
	store     *store.Store
	overrides *telemetry.Overrides
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ov := telemetry.NewOverrides()
	mgr := device.NewManager(st, nopDialer{}, nopHandler{})
	h := NewHandler(st, mgr, ov, ws.NewHub(16))
	return &testEnv{router: NewRouter(h), store: st, overrides: ov}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func (e *testEnv) createGreenhouse(t *testing.T, deviceURL string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/greenhouses", gin.H{
		"name": "North Wing", "location": "Lot 4", "plantType": "tomato", "deviceUrl": deviceURL,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create greenhouse: %d %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeBody(t, rec)["id"].(string)
	if id == "" {
		t.Fatalf("no id in response: %s", rec.Body.String())
	}
	return id
}

func TestCreateGreenhouseValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/greenhouses", gin.H{"name": "only a name"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Missing fields" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetGreenhouse(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGreenhouse(t, "")

	rec := env.do(t, http.MethodGet, "/api/greenhouses/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if decodeBody(t, rec)["name"] != "North Wing" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/greenhouses/missing", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't exist" {
		t.Fatalf("want missing-greenhouse error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestConnectDisconnectFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGreenhouse(t, "tcp://broker:1883")

	rec := env.do(t, http.MethodPost, "/api/greenhouses/"+id+"/connect", nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["message"] != "Connected to GreenHouse device" {
		t.Fatalf("connect: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/greenhouses/"+id+"/connect", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Device is already connected" {
		t.Fatalf("second connect: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/greenhouses/"+id+"/disconnect", nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["message"] != "Disconnected from GreenHouse device" {
		t.Fatalf("disconnect: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/greenhouses/"+id+"/disconnect", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Device is not connected" {
		t.Fatalf("second disconnect: %d %s", rec.Code, rec.Body.String())
	}
}

func TestConnectErrors(t *testing.T) {
	env := newTestEnv(t)
	noDevice := env.createGreenhouse(t, "")

	rec := env.do(t, http.MethodPost, "/api/greenhouses/"+noDevice+"/connect", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't have device url" {
		t.Fatalf("no device url: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/greenhouses/missing/connect", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't exist" {
		t.Fatalf("missing greenhouse: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateThresholds(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGreenhouse(t, "")

	rec := env.do(t, http.MethodPut, "/api/greenhouses/"+id+"/thresholds", gin.H{
		"temperature": gin.H{"min": 10, "max": 30},
		"ph":          gin.H{"max": 8},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	th, err := env.store.GetThresholds(context.Background(), id)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if th.Temperature.Min == nil || *th.Temperature.Min != 10 || th.Ph.Max == nil || *th.Ph.Max != 8 {
		t.Fatalf("thresholds not persisted: %+v", th)
	}
	if th.Humidity.Min != nil || th.Humidity.Max != nil {
		t.Fatalf("omitted bounds must stay unset: %+v", th.Humidity)
	}

	rec = env.do(t, http.MethodPut, "/api/greenhouses/missing/thresholds", gin.H{})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't exist" {
		t.Fatalf("missing greenhouse: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSetOverride(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGreenhouse(t, "")

	rec := env.do(t, http.MethodPut, "/api/greenhouses/"+id+"/override", gin.H{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("set override: %d %s", rec.Code, rec.Body.String())
	}
	if !env.overrides.Enabled(id) {
		t.Fatalf("override flag not set")
	}

	rec = env.do(t, http.MethodPut, "/api/greenhouses/"+id+"/override", gin.H{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear override: %d %s", rec.Code, rec.Body.String())
	}
	if env.overrides.Enabled(id) {
		t.Fatalf("override flag not cleared")
	}

	rec = env.do(t, http.MethodPut, "/api/greenhouses/"+id+"/override", gin.H{})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Missing fields" {
		t.Fatalf("missing enabled: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, "/api/greenhouses/missing/override", gin.H{"enabled": true})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't exist" {
		t.Fatalf("missing greenhouse: %d %s", rec.Code, rec.Body.String())
	}
}

func TestListStats(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGreenhouse(t, "")

	for i := 0; i < 3; i++ {
		sample := telemetry.SensorSample{Temperature: float64(20 + i), Humidity: 50, SoilMoisture: 40, Ph: 6.5}
		if err := env.store.SaveStatSample(context.Background(), id, sample); err != nil {
			t.Fatalf("seed sample: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/greenhouses/"+id+"/stats?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("limit not applied: %d rows", len(rows))
	}

	for _, limit := range []string{"nope", "0", "-1"} {
		rec = env.do(t, http.MethodGet, "/api/greenhouses/"+id+"/stats?limit="+limit, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: want 400, got %d", limit, rec.Code)
		}
	}

	rec = env.do(t, http.MethodGet, "/api/greenhouses/missing/stats", nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Green house doesn't exist" {
		t.Fatalf("missing greenhouse: %d %s", rec.Code, rec.Body.String())
	}
}
