package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cocoaplant/cocoaplant/pkg/types"
	wsHub "github.com/cocoaplant/cocoaplant/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// alertList is a mutable alert feed standing in for the alert engine.
type alertList struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func newAlerts(ids ...string) *alertList {
	l := &alertList{alerts: []types.Alert{}}
	for _, id := range ids {
		l.add(id)
	}
	return l
}

func (l *alertList) add(id string) {
	l.mu.Lock()
	l.alerts = append(l.alerts, types.Alert{ID: id, Severity: types.SeverityHigh, Status: types.AlertActive})
	l.mu.Unlock()
}

func (l *alertList) snapshot() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Alert{}, l.alerts...)
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cleanup function.
func startHub(t *testing.T, al *alertList, interval time.Duration) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(al.snapshot, interval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Seq   uint64          `json:"seq"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readMessage reads one envelope from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func decodeAlerts(t *testing.T, env envelope) []types.Alert {
	t.Helper()
	var out []types.Alert
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	return out
}

// waitCount polls hub.Count until it equals want.
func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesCurrentAlerts(t *testing.T) {
	wsURL, _, _ := startHub(t, newAlerts("AUTO-MST-1", "AUTO-DEF-2"), time.Hour)

	conn := dial(t, wsURL)
	env := readMessage(t, conn)
	if env.Event != wsHub.EventAlerts {
		t.Errorf("event: got %v, want alerts", env.Event)
	}
	alerts := decodeAlerts(t, env)
	if len(alerts) != 2 || alerts[0].ID != "AUTO-MST-1" {
		t.Errorf("alerts: got %+v", alerts)
	}
}

func TestHub_NoAlerts_EmptyList(t *testing.T) {
	wsURL, _, _ := startHub(t, newAlerts(), time.Hour)
	conn := dial(t, wsURL)

	env := readMessage(t, conn)
	if string(env.Data) != "[]" {
		t.Errorf("data: got %s, want []", env.Data)
	}
}

func TestHub_CountClients_MultipleClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts(), time.Hour)

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}
	waitCount(t, hub, 3)
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts(), time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	conn.Close()
	waitCount(t, hub, 0)
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	al := newAlerts()
	wsURL, _, _ := startHub(t, al, testInterval)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume immediate snapshot (no alerts)

	al.add("AUTO-DEF-9")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := readMessage(t, conn)
		if alerts := decodeAlerts(t, env); len(alerts) == 1 {
			if alerts[0].ID != "AUTO-DEF-9" {
				t.Errorf("id: got %v, want AUTO-DEF-9", alerts[0].ID)
			}
			return
		}
	}
	t.Fatal("tick broadcast never carried the new alert")
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts(), time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}
	waitCount(t, hub, 3)

	hub.Publish("sensor", types.SensorUpdate{Type: types.SensorDrying, Value: 12.5, BatchID: "DRY-1001"})

	for i, conn := range conns {
		env := readMessage(t, conn)
		if env.Event != "sensor" {
			t.Errorf("client %d: event: got %v, want sensor", i, env.Event)
			continue
		}
		var u types.SensorUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			t.Errorf("client %d: decode: %v", i, err)
			continue
		}
		if u.BatchID != "DRY-1001" || u.Value != 12.5 {
			t.Errorf("client %d: got %+v", i, u)
		}
	}
}

func TestHub_PublishUnencodable_Ignored(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts(), time.Hour)
	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	hub.Publish("bad", make(chan int))
	hub.Publish("popup", types.Popup{Title: "Critical Moisture Deviation"})

	if env := readMessage(t, conn); env.Event != "popup" {
		t.Errorf("event: got %v, want popup", env.Event)
	}
}

func TestHub_EventFilter(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts("AUTO-MST-1"), time.Hour)

	conn := dial(t, wsURL+"?events=anomaly")
	if env := readMessage(t, conn); env.Event != wsHub.EventAlerts {
		t.Fatalf("first event: got %v, want alerts", env.Event)
	}
	waitCount(t, hub, 1)

	hub.Publish("sensor", types.SensorUpdate{Type: types.SensorRoasting, Value: 140})
	hub.Publish("anomaly", map[string]float64{"value": 400})
	hub.Publish(wsHub.EventAlerts, []types.Alert{})

	if env := readMessage(t, conn); env.Event != "anomaly" {
		t.Errorf("filtered client: got %v, want anomaly", env.Event)
	}
	if env := readMessage(t, conn); env.Event != wsHub.EventAlerts {
		t.Errorf("alerts bypass the filter: got %v", env.Event)
	}
}

func TestHub_SequenceIncreases(t *testing.T) {
	wsURL, hub, _ := startHub(t, newAlerts(), time.Hour)
	conn := dial(t, wsURL)
	first := readMessage(t, conn)
	waitCount(t, hub, 1)

	hub.Publish("jobs", []string{})
	hub.Publish("jobs", []string{})

	a, b := readMessage(t, conn), readMessage(t, conn)
	if a.Seq != first.Seq+1 || b.Seq != first.Seq+2 {
		t.Errorf("seq: got %d, %d after %d", a.Seq, b.Seq, first.Seq)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newAlerts(), time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	cancel() // signal shutdown
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(nil, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers -> 400
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
