package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"greenhouse-monitor/internal/telemetry"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// dialViewer connects a test websocket client into the room named by the
// request path's last segment.
func dialViewer(t *testing.T, hub *Hub) (*websocket.Conn, func(room string) *websocket.Conn) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if err := ServeWS(hub, room, w, r); err != nil {
			t.Errorf("serve ws: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	dial := func(room string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/greenhouses/" + room
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", room, err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return dial("gh-1"), dial
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return env
}

func TestBroadcastSampleReachesViewer(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	conn, _ := dialViewer(t, hub)
	time.Sleep(200 * time.Millisecond) // registration is asynchronous

	hub.BroadcastSample("gh-1", telemetry.SensorSample{Temperature: 21.5, Humidity: 55, SoilMoisture: 42, Ph: 6.8})

	env := readEnvelope(t, conn)
	if env.Type != MessageTypeSensorData {
		t.Fatalf("want type %q, got %q", MessageTypeSensorData, env.Type)
	}
	payload, ok := env.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload is %T", env.Payload)
	}
	if payload["temperature"] != 21.5 {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestBroadcastAlertEnvelope(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	conn, _ := dialViewer(t, hub)
	time.Sleep(200 * time.Millisecond)

	hub.BroadcastAlert(telemetry.AlertEvent{
		GreenhouseID: "gh-1",
		Metric:       telemetry.MetricPh,
		Value:        9,
		Threshold:    8,
		Message:      "ph is above max threshold: 9 > 8",
		Timestamp:    time.Now().UTC(),
	})

	env := readEnvelope(t, conn)
	if env.Type != MessageTypeAlert {
		t.Fatalf("want type %q, got %q", MessageTypeAlert, env.Type)
	}
	payload, ok := env.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload is %T", env.Payload)
	}
	if payload["message"] != "ph is above max threshold: 9 > 8" {
		t.Fatalf("payload mismatch: %v", payload)
	}
	if payload["greenhouseId"] != "gh-1" {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestRoomIsolation(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	conn1, dial := dialViewer(t, hub)
	conn2 := dial("gh-2")
	time.Sleep(200 * time.Millisecond)

	hub.BroadcastSample("gh-2", telemetry.SensorSample{Temperature: 30})

	env := readEnvelope(t, conn2)
	if env.Type != MessageTypeSensorData {
		t.Fatalf("gh-2 viewer got %q", env.Type)
	}

	// The gh-1 viewer must see nothing.
	conn1.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn1.ReadMessage(); err == nil {
		t.Fatalf("message leaked into another room")
	}
}

func TestViewerDisconnectLeavesRoomUsable(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	conn1, dial := dialViewer(t, hub)
	conn2 := dial("gh-1")
	time.Sleep(200 * time.Millisecond)

	conn1.Close()
	time.Sleep(200 * time.Millisecond)

	hub.BroadcastSample("gh-1", telemetry.SensorSample{Temperature: 18})
	env := readEnvelope(t, conn2)
	if env.Type != MessageTypeSensorData {
		t.Fatalf("remaining viewer got %q", env.Type)
	}
}
