package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/eventbus"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPublisher struct {
	snapshots int
	links     int
	err       error
}

func (s *stubPublisher) PublishSnapshot(context.Context, *models.Snapshot) error {
	s.snapshots++
	return s.err
}

func (s *stubPublisher) PublishTopologyChange(context.Context, []models.Link) error {
	s.links++
	return s.err
}

func TestFanout_CallsEveryPublisher(t *testing.T) {
	boom := errors.New("boom")
	a := &stubPublisher{}
	b := &stubPublisher{err: boom}
	c := &stubPublisher{}
	f := NewFanout(a, nil, b, c)

	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", f.Len())
	}

	err := f.PublishSnapshot(context.Background(), &models.Snapshot{})
	if !errors.Is(err, ErrPublish) || !errors.Is(err, boom) {
		t.Errorf("error = %v, want ErrPublish wrapping boom", err)
	}
	if a.snapshots != 1 || b.snapshots != 1 || c.snapshots != 1 {
		t.Error("a failing publisher must not stop the others")
	}

	b.err = nil
	if err := f.PublishTopologyChange(context.Background(), nil); err != nil {
		t.Errorf("PublishTopologyChange() error = %v", err)
	}
}

func testSnapshot(state models.State) *models.Snapshot {
	now := time.Now()
	return models.NewSnapshot(uuid.New(), now, now, false, []models.SectorStatus{
		{SectorID: "a", Name: "Sector A", State: state, Devices: []models.DeviceStatus{}},
	})
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func TestHub_StreamsSnapshotsAndTopology(t *testing.T) {
	// 1. hub over a bus with an initial snapshot
	bus := eventbus.NewEventBus(8)
	defer bus.Close()

	initial := testSnapshot(models.StateOK)
	hub := NewHub(bus, func() *models.Snapshot { return initial }, config.WebSocketConfig{BufferSize: 8}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	// 2. connect
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	first := readMessage(t, conn)
	if first.Type != TypeStatusSnapshot {
		t.Fatalf("first message type = %q, want %q", first.Type, TypeStatusSnapshot)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", hub.ClientCount())
	}

	// 3. publish a snapshot and a topology change
	if err := hub.PublishSnapshot(ctx, testSnapshot(models.StateCritical)); err != nil {
		t.Fatalf("PublishSnapshot() error = %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != TypeStatusSnapshot {
		t.Fatalf("message type = %q", msg.Type)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if len(snap.Statuses) != 1 || snap.Statuses[0].State != models.StateCritical {
		t.Errorf("snapshot = %+v", snap.Statuses)
	}

	links := []models.Link{{ID: "l1", SourceID: "a", TargetID: "b"}}
	if err := hub.PublishTopologyChange(ctx, links); err != nil {
		t.Fatalf("PublishTopologyChange() error = %v", err)
	}
	msg = readMessage(t, conn)
	if msg.Type != TypeTopologyChanged {
		t.Fatalf("message type = %q", msg.Type)
	}
	var got []models.Link
	if err := json.Unmarshal(msg.Data, &got); err != nil || len(got) != 1 || got[0].ID != "l1" {
		t.Errorf("links = %+v, err = %v", got, err)
	}
}

func TestHub_NoSnapshotBeforeFirstCycle(t *testing.T) {
	bus := eventbus.NewEventBus(8)
	defer bus.Close()

	hub := NewHub(bus, func() *models.Snapshot { return nil }, config.WebSocketConfig{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("no message expected before the first snapshot")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	bus := eventbus.NewEventBus(8)
	defer bus.Close()

	hub := NewHub(bus, func() *models.Snapshot { return nil },
		config.WebSocketConfig{AllowedOrigins: []string{"http://ops.example"}}, discardLogger())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err == nil {
		t.Fatal("expected handshake failure for foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestEncode(t *testing.T) {
	b, err := encode(TypeTopologyChanged, []models.Link{})
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if msg.Type != TypeTopologyChanged || string(msg.Data) != "[]" {
		t.Errorf("message = %s", b)
	}
}
