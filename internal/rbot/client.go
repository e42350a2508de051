// Package rbot is the robot-facing SDK: it lets a sequential control
// program talk to the tick-driven arena as if it were synchronous. Reads
// come from the latest published tick snapshot; Await* calls suspend the
// caller until the condition holds on a future tick; commands are
// fire-and-forget with their effect visible on later ticks.
package rbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"botbeats.net/rbot/internal/bridge"
	"botbeats.net/rbot/internal/protocol"
)

// AwaitOption re-export so robot programs only import this package.
type AwaitOption = bridge.AwaitOption

// WithDeadlineTicks bounds an Await* call to n ticks.
func WithDeadlineTicks(n uint64) AwaitOption { return bridge.WithDeadlineTicks(n) }

// Await outcome errors.
var (
	ErrTimeout       = bridge.ErrTimeout
	ErrInvalidTarget = bridge.ErrInvalidTarget
	ErrRejected      = bridge.ErrRejected
)

type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	robotID   string
	sessionID string
	profile   protocol.RobotProfile
	arena     protocol.ArenaParams

	store   *bridge.Store
	awaiter *bridge.Awaiter
	disp    *bridge.Dispatcher

	writeMu sync.Mutex
	cmdSeq  atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

type dialConfig struct {
	logger           *log.Logger
	handshakeTimeout time.Duration
}

type DialOption func(*dialConfig)

func WithLogger(l *log.Logger) DialOption {
	return func(c *dialConfig) { c.logger = l }
}

func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) { c.handshakeTimeout = d }
}

// Dial connects to the arena, performs the HELLO/WELCOME handshake and
// blocks until the first tick snapshot arrives, so every read on the
// returned client sees a fully-formed snapshot.
func Dial(url, name string, opts ...DialOption) (*Client, error) {
	cfg := dialConfig{
		logger:           log.New(os.Stdout, "[rbot] ", log.LstdFlags|log.Lmicroseconds),
		handshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		RobotName:       name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.handshakeTimeout))
	var welcome protocol.WelcomeMsg
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("read WELCOME: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.Type != protocol.TypeWelcome {
			continue
		}
		if err := json.Unmarshal(msg, &welcome); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("decode WELCOME: %w", err)
		}
		break
	}

	c := &Client{
		conn:      conn,
		log:       cfg.logger,
		robotID:   welcome.RobotID,
		sessionID: welcome.SessionID,
		profile:   welcome.Profile,
		arena:     welcome.ArenaParams,
		store:     bridge.NewStore(),
		closed:    make(chan struct{}),
	}
	c.awaiter = bridge.NewAwaiter(c.store)
	c.disp = bridge.NewDispatcher(c.store, bridge.ProfileFromWelcome(welcome.Profile), bridge.SinkFunc(c.sendCmd))

	firstTick := make(chan struct{})
	go c.readLoop(firstTick)

	select {
	case <-firstTick:
	case <-c.closed:
		return nil, fmt.Errorf("connection closed before the first tick")
	case <-time.After(cfg.handshakeTimeout):
		_ = c.Close()
		return nil, fmt.Errorf("no tick received within %v", cfg.handshakeTimeout)
	}
	return c, nil
}

func (c *Client) readLoop(firstTick chan struct{}) {
	defer c.Close()
	var sawTick bool
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeTick:
			var tick protocol.TickMsg
			if err := json.Unmarshal(msg, &tick); err != nil {
				continue
			}
			if cur := c.store.Current(); cur != nil && tick.Tick <= cur.Tick {
				// Ticks arrive in strictly increasing order; drop anything
				// stale or replayed.
				continue
			}
			c.store.Publish(snapshotFromTick(&tick))
			if !sawTick {
				sawTick = true
				close(firstTick)
			}
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				c.log.Printf("command %s refused: %s %s", ack.AckFor, ack.Code, ack.Message)
			}
		case protocol.TypeBye:
			var bye protocol.ByeMsg
			if err := json.Unmarshal(msg, &bye); err == nil {
				c.log.Printf("session over at tick %d: %s", bye.Tick, bye.Reason)
			}
			return
		}
	}
}

func (c *Client) sendCmd(cmd bridge.Command) error {
	var tick uint64
	if s := c.store.Current(); s != nil {
		tick = s.Tick
	}
	msg := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		RobotID:         c.robotID,
		CmdID:           fmt.Sprintf("C%06d", c.cmdSeq.Add(1)),
		Kind:            cmd.Kind,
		X:               cmd.X,
		Y:               cmd.Y,
		Speed:           cmd.Speed,
		Angle:           cmd.Angle,
		ComponentID:     cmd.ComponentID,
		Sticky:          cmd.Sticky,
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(msg)
}

// Close tears down the connection. Outstanding awaits keep waiting on
// their contexts; callers should cancel those contexts when the robot
// program exits.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) RobotID() string { return c.robotID }

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) Profile() protocol.RobotProfile { return c.profile }

func (c *Client) ArenaParams() protocol.ArenaParams { return c.arena }

// Tick is the latest observed tick number.
func (c *Client) Tick() uint64 {
	if s := c.store.Current(); s != nil {
		return s.Tick
	}
	return 0
}

// State reads the chassis state from the current snapshot. Never blocks.
func (c *Client) State() bridge.SelfState {
	if s := c.store.Current(); s != nil {
		return s.Self
	}
	return bridge.SelfState{}
}

// ComponentState reads one component's state from the current snapshot.
func (c *Client) ComponentState(id int) (bridge.ComponentState, bool) {
	if s := c.store.Current(); s != nil {
		return s.Component(id)
	}
	return bridge.ComponentState{}, false
}

// ModuleState reads one module's state from the current snapshot.
func (c *Client) ModuleState(m Module) (bridge.ModuleState, bool) {
	if s := c.store.Current(); s != nil {
		return s.Module(m)
	}
	return bridge.ModuleState{}, false
}

// AwaitModule blocks until the module is available, the optional tick
// deadline passes, or ctx is cancelled.
func (c *Client) AwaitModule(ctx context.Context, m Module, opts ...AwaitOption) error {
	return c.awaiter.Await(ctx, bridge.ModuleAvailable(m), opts...)
}

// AwaitComponent blocks until the component's cooldown expires.
func (c *Client) AwaitComponent(ctx context.Context, id int, opts ...AwaitOption) error {
	return c.awaiter.Await(ctx, bridge.ComponentReady(id), opts...)
}

// AwaitAim aims the component at the global angle and blocks until its
// heading has stayed within slack degrees for holdTicks consecutive
// ticks (holdTicks of 1 means a single in-tolerance tick).
func (c *Client) AwaitAim(ctx context.Context, id int, angle, slack float64, holdTicks int, opts ...AwaitOption) error {
	if err := c.Aim(id, angle); err != nil {
		return err
	}
	return c.awaiter.Await(ctx, bridge.AimSettled(id, angle, slack, holdTicks), opts...)
}

// AtRotation reports whether the component currently points at the angle
// within slack degrees. Reads the current snapshot only.
func (c *Client) AtRotation(id int, angle, slack float64) bool {
	st, ok := c.ComponentState(id)
	return ok && AngleDistance(st.Heading, angle) <= slack
}

// Radar returns the latest radar echo, or false when no pulse has
// landed yet. Reads the current snapshot only; pair with AwaitModule to
// wait for a fresh pulse.
func (c *Client) Radar() (bridge.RadarEcho, bool) {
	if s := c.store.Current(); s != nil && s.Radar != nil {
		return *s.Radar, true
	}
	return bridge.RadarEcho{}, false
}

// GPSFix returns the robot's absolute position from the map center, or
// false if the GPS module produced no fix yet.
func (c *Client) GPSFix() (bridge.GPSFix, bool) {
	if s := c.store.Current(); s != nil && s.GPS != nil {
		return *s.GPS, true
	}
	return bridge.GPSFix{}, false
}

// Velocity sets the traversal direction (x, y is normalized by the
// arena) and speed in [0, 1].
func (c *Client) Velocity(x, y, speed float64) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdVelocity, X: x, Y: y, Speed: speed})
}

// Rotate turns the chassis to the global angle in degrees.
func (c *Client) Rotate(angle float64) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdRotate, Angle: angle})
}

// Aim points the component at the global angle in degrees.
func (c *Client) Aim(id int, angle float64) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdAim, ComponentID: id, Angle: angle})
}

// UseComponent fires the component. With sticky set, the arena keeps
// refiring it whenever the cooldown is ready.
func (c *Client) UseComponent(id int, sticky bool) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdFire, ComponentID: id, Sticky: sticky})
}

// Thrust propels the robot a short distance in the global angle.
func (c *Client) Thrust(angle float64) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdThrust, Angle: angle})
}

// Mine drops a mine beneath the robot.
func (c *Client) Mine() error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdMine})
}

// ForceField grants temporary invincibility.
func (c *Client) ForceField() error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdForceField})
}

// RepairComponent restores the component's health.
func (c *Client) RepairComponent(id int) error {
	return c.disp.Dispatch(bridge.Command{Kind: protocol.CmdRepair, ComponentID: id})
}

// Laser sends a pulse at the global angle and blocks until the echo for
// that pulse appears in a snapshot.
func (c *Client) Laser(ctx context.Context, angle float64, opts ...AwaitOption) (bridge.LaserEcho, error) {
	if err := c.disp.Dispatch(bridge.Command{Kind: protocol.CmdLaser, Angle: angle}); err != nil {
		return bridge.LaserEcho{}, err
	}
	sentTick := c.Tick()
	var echo bridge.LaserEcho
	err := c.awaiter.Await(ctx, bridge.Predicate{
		WindowTicks: 1,
		Eval: func(w *bridge.Window) bool {
			s := w.Latest()
			if s == nil || s.Laser == nil || s.Tick <= sentTick {
				return false
			}
			echo = *s.Laser
			return true
		},
	}, opts...)
	if err != nil {
		return bridge.LaserEcho{}, err
	}
	return echo, nil
}

// Scan runs a 360-degree scan and blocks until its result appears in a
// snapshot.
func (c *Client) Scan(ctx context.Context, opts ...AwaitOption) ([]bridge.ScanObject, error) {
	if err := c.disp.Dispatch(bridge.Command{Kind: protocol.CmdScan}); err != nil {
		return nil, err
	}
	sentTick := c.Tick()
	var objs []bridge.ScanObject
	err := c.awaiter.Await(ctx, bridge.Predicate{
		WindowTicks: 1,
		Eval: func(w *bridge.Window) bool {
			s := w.Latest()
			if s == nil || s.Scan == nil || s.Tick <= sentTick {
				return false
			}
			objs = s.Scan
			return true
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	return objs, nil
}

// ScanForBot scans and reduces the result to the enemy bot's position:
// the motherboard if visible, otherwise the average position of its
// components. ok is false when nothing bot-like is in range.
func (c *Client) ScanForBot(ctx context.Context, opts ...AwaitOption) (bridge.ScanObject, bool, error) {
	objs, err := c.Scan(ctx, opts...)
	if err != nil {
		return bridge.ScanObject{}, false, err
	}
	obj, ok := ReduceScanToBot(objs)
	return obj, ok, nil
}

// ReduceScanToBot picks the enemy bot position out of scan objects:
// motherboard position when present, otherwise the component average.
func ReduceScanToBot(objs []bridge.ScanObject) (bridge.ScanObject, bool) {
	var comps []bridge.ScanObject
	for _, o := range objs {
		if o.Tag == TagComponent {
			comps = append(comps, o)
		}
	}
	if len(comps) == 0 {
		return bridge.ScanObject{}, false
	}
	for _, o := range comps {
		if o.Kind == KindMotherboard {
			return bridge.ScanObject{X: o.X, Y: o.Y, Tag: TagBot, Buffs: o.Buffs}, true
		}
	}
	var x, y float64
	for _, o := range comps {
		x += o.X
		y += o.Y
	}
	n := float64(len(comps))
	return bridge.ScanObject{X: x / n, Y: y / n, Tag: TagBot}, true
}
