package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"botbeats.net/rbot/internal/protocol"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	ErrCode string
}

type CommandEnvelope struct {
	RobotID string
	Cmd     protocol.CmdMsg
}

type RecordedJoin struct {
	RobotID string `json:"robot_id"`
	Name    string `json:"name"`
}

type RecordedCommand struct {
	Seq      int    `json:"seq"`
	RobotID  string `json:"robot_id"`
	CmdID    string `json:"cmd_id"`
	Kind     string `json:"kind"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
}

// TickLogEntry is one JSONL record per tick.
type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Robots   int               `json:"robots"`
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
}

// TickLogger persists tick entries. Implemented in internal/persistence.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// MatchIndex is the queryable read-model sink. Implemented in
// internal/persistence/matchdb; writes must never stall the tick loop.
type MatchIndex interface {
	WriteTick(entry TickLogEntry) error
	WriteJoin(tick uint64, robotID, name, sessionID string) error
	WriteCommand(tick uint64, rec RecordedCommand) error
}

// Arena is a single-threaded authoritative simulation. All state is
// accessed only from the arena loop goroutine; transports talk to it
// through the channels.
type Arena struct {
	cfg Config
	log *log.Logger
	rng *rand.Rand

	tick atomic.Uint64

	robots  map[string]*robot
	clients map[string]chan []byte
	mines   []mine

	matchOver bool

	inbox chan CommandEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}
	done  chan struct{}

	nextRobotNum atomic.Uint64
	robotCount   atomic.Int64

	// Optional sinks (may be nil).
	tickLogger TickLogger
	index      MatchIndex
}

func New(cfg Config, logger *log.Logger) *Arena {
	cfg.applyDefaults()
	return &Arena{
		cfg:     cfg,
		log:     logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		robots:  make(map[string]*robot),
		clients: make(map[string]chan []byte),
		inbox:   make(chan CommandEnvelope, 256),
		join:    make(chan JoinRequest, 8),
		leave:   make(chan string, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetTickLogger attaches a tick log sink. Call before Run.
func (a *Arena) SetTickLogger(l TickLogger) { a.tickLogger = l }

// SetIndex attaches the match index. Call before Run.
func (a *Arena) SetIndex(idx MatchIndex) { a.index = idx }

func (a *Arena) Config() Config { return a.cfg }

func (a *Arena) Join() chan<- JoinRequest      { return a.join }
func (a *Arena) Leave() chan<- string          { return a.leave }
func (a *Arena) Inbox() chan<- CommandEnvelope { return a.inbox }

func (a *Arena) Stop() { close(a.stop) }

// Done is closed when Run returns. Transports select on it so they
// never block handing work to a loop that has already exited.
func (a *Arena) Done() <-chan struct{} { return a.done }

// Run drives the tick loop until ctx is cancelled or Stop is called.
// Joins, leaves and commands are buffered between ticks and applied at
// the tick boundary, in arrival order.
func (a *Arena) Run(ctx context.Context) error {
	defer close(a.done)
	interval := time.Second / time.Duration(a.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stop:
			return nil
		case req := <-a.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-a.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-a.inbox:
			pendingCmds = append(pendingCmds, env)
		case <-ticker.C:
			a.step(pendingJoins, pendingLeaves, pendingCmds)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			if a.matchOver {
				return nil
			}
		}
	}
}

// StepOnce advances the arena by a single tick with the same ordering
// semantics as Run. Intended for deterministic tests.
func (a *Arena) StepOnce(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) uint64 {
	a.step(joins, leaves, cmds)
	return a.tick.Load()
}

// Tick is the last completed tick number.
func (a *Arena) Tick() uint64 { return a.tick.Load() }

// Metrics is a loop-safe view for the /metrics endpoint.
type Metrics struct {
	Tick       uint64
	Robots     int64
	InboxDepth int
	JoinDepth  int
	LeaveDepth int
}

func (a *Arena) Metrics() Metrics {
	return Metrics{
		Tick:       a.tick.Load(),
		Robots:     a.robotCount.Load(),
		InboxDepth: len(a.inbox),
		JoinDepth:  len(a.join),
		LeaveDepth: len(a.leave),
	}
}

func (a *Arena) joinRobot(req JoinRequest) (JoinResponse, RecordedJoin) {
	if len(a.robots) >= a.cfg.MaxRobots {
		return JoinResponse{ErrCode: protocol.ErrArenaFull}, RecordedJoin{}
	}
	name := req.Name
	if name == "" {
		name = "robot"
	}
	idNum := a.nextRobotNum.Add(1)
	robotID := fmt.Sprintf("R%d", idNum)
	sessionID := uuid.NewString()

	// Spawn on a ring, spread by join order with seeded jitter.
	spawnAngle := float64(idNum)*137.5 + a.rng.Float64()*10
	dx, dy := angleToXY(spawnAngle)
	ring := a.cfg.Radius * 0.6
	r := newRobot(robotID, name, sessionID, a.cfg, vec2{X: dx * ring, Y: dy * ring})

	a.robots[robotID] = r
	if req.Out != nil {
		a.clients[robotID] = req.Out
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		RobotID:         robotID,
		SessionID:       sessionID,
		Profile:         r.profile(),
		ArenaParams: protocol.ArenaParams{
			TickRateHz: a.cfg.TickRateHz,
			Radius:     a.cfg.Radius,
			MatchTicks: a.cfg.MatchTicks,
			Seed:       a.cfg.Seed,
		},
	}
	return JoinResponse{Welcome: welcome}, RecordedJoin{RobotID: robotID, Name: name}
}

func (a *Arena) handleLeave(robotID string) {
	delete(a.clients, robotID)
	delete(a.robots, robotID)
}

// sendLatest enqueues b without ever blocking the tick loop: if the
// client's queue is full, the oldest frame is dropped first.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
