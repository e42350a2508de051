package ws_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"botbeats.net/rbot/internal/protocol"
	"botbeats.net/rbot/internal/rbot"
	"botbeats.net/rbot/internal/sim"
	"botbeats.net/rbot/internal/transport/ws"
)

func startArena(t *testing.T) string {
	t.Helper()
	cfg := sim.Config{TickRateHz: 100, Radius: 200, Seed: 7}
	logger := log.New(io.Discard, "", 0)
	arena := sim.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = arena.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(arena, logger).Handler())
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func TestEndToEndJoinAndCommand(t *testing.T) {
	url := startArena(t)

	c, err := rbot.Dial(url, "itest", rbot.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if c.RobotID() != "R1" {
		t.Fatalf("unexpected robot id %q", c.RobotID())
	}
	if c.Tick() == 0 {
		t.Fatalf("no first tick")
	}
	if c.ArenaParams().TickRateHz != 100 {
		t.Fatalf("arena params not propagated: %+v", c.ArenaParams())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// GPS pulses every tick, so this resolves on the current snapshot.
	if err := c.AwaitModule(ctx, rbot.GPS); err != nil {
		t.Fatalf("await gps: %v", err)
	}
	if _, ok := c.GPSFix(); !ok {
		t.Fatalf("no gps fix")
	}

	if err := c.UseComponent(0, false); err != nil {
		t.Fatalf("fire: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if st, ok := c.ComponentState(0); ok && st.CooldownTicks > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fire never reflected in component state")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The component comes back once the cooldown has run down.
	if err := c.AwaitComponent(ctx, 0, rbot.WithDeadlineTicks(500)); err != nil {
		t.Fatalf("await component: %v", err)
	}
}

func TestEndToEndTwoRobots(t *testing.T) {
	url := startArena(t)

	quiet := rbot.WithLogger(log.New(io.Discard, "", 0))
	c1, err := rbot.Dial(url, "one", quiet)
	if err != nil {
		t.Fatalf("dial one: %v", err)
	}
	defer c1.Close()
	c2, err := rbot.Dial(url, "two", quiet)
	if err != nil {
		t.Fatalf("dial two: %v", err)
	}
	defer c2.Close()

	if c1.RobotID() == c2.RobotID() {
		t.Fatalf("both robots got id %q", c1.RobotID())
	}

	// With a second robot in the arena the radar eventually echoes.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c1.AwaitModule(ctx, rbot.Radar, rbot.WithDeadlineTicks(200)); err != nil {
		t.Fatalf("await radar: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if echo, ok := c1.Radar(); ok && echo.Distance > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("radar never echoed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandlerExitsAfterMatchEnds(t *testing.T) {
	cfg := sim.Config{TickRateHz: 100, Radius: 200, Seed: 7, MatchTicks: 20}
	logger := log.New(io.Discard, "", 0)
	arena := sim.New(cfg, logger)
	go func() { _ = arena.Run(context.Background()) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(arena, logger).Handler())
	srv := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		RobotName:       "straggler",
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	select {
	case <-arena.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("match never ended")
	}

	// Nobody drains the leave queue once the loop has exited; fill it so
	// the handler's goodbye cannot ride the channel buffer.
filling:
	for {
		select {
		case arena.Leave() <- "RX":
		default:
			break filling
		}
	}

	_ = conn.Close()
	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler blocked on the leave queue after the match ended")
	}
}

func TestHandshakeRejectsNonHello(t *testing.T) {
	url := startArena(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CMD"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the connection")
	}
}
