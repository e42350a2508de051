package bridge

import (
	"errors"
	"fmt"
	"sync"

	"botbeats.net/rbot/internal/protocol"
)

var (
	// ErrInvalidTarget flags an unknown module or component id. This is a
	// caller programming error, surfaced immediately.
	ErrInvalidTarget = errors.New("dispatch: invalid target")

	// ErrRejected flags a command that is well-formed but refused, e.g.
	// firing a component that is still on cooldown. Recoverable: re-check
	// readiness and retry.
	ErrRejected = errors.New("dispatch: command rejected")
)

// Command is one intent for the host. Effects are never immediate; they
// become visible through a later snapshot.
type Command struct {
	Kind string // protocol.Cmd* kind

	X     float64
	Y     float64
	Speed float64

	Angle float64

	ComponentID int
	Sticky      bool
}

// Sink receives accepted commands in issuance order.
type Sink interface {
	Send(cmd Command) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(cmd Command) error

func (f SinkFunc) Send(cmd Command) error { return f(cmd) }

// Profile is the loadout the host assigned to this robot, fixed for the
// session. Dispatch validates targets against it.
type Profile struct {
	Components map[int]struct{}
	Modules    map[Module]struct{}
}

// ProfileFromWelcome builds a Profile from the WELCOME handshake payload.
func ProfileFromWelcome(p protocol.RobotProfile) Profile {
	prof := Profile{
		Components: make(map[int]struct{}, len(p.Components)),
		Modules:    make(map[Module]struct{}, len(p.Modules)),
	}
	for _, c := range p.Components {
		prof.Components[c.ID] = struct{}{}
	}
	for _, name := range p.Modules {
		if m, ok := ModuleFromName(name); ok {
			prof.Modules[m] = struct{}{}
		}
	}
	return prof
}

func (p Profile) HasComponent(id int) bool {
	_, ok := p.Components[id]
	return ok
}

func (p Profile) HasModule(m Module) bool {
	_, ok := p.Modules[m]
	return ok
}

// Dispatcher forwards command intents to the host. It validates targets
// locally, checks fire readiness against the current snapshot, and
// preserves issuance order. It never waits for the command's physical
// effect.
type Dispatcher struct {
	store   *Store
	profile Profile
	sink    Sink

	mu sync.Mutex
}

func NewDispatcher(store *Store, profile Profile, sink Sink) *Dispatcher {
	return &Dispatcher{store: store, profile: profile, sink: sink}
}

var moduleForCmd = map[string]Module{
	protocol.CmdLaser:      ModuleLaser,
	protocol.CmdScan:       ModuleScanner,
	protocol.CmdThrust:     ModuleThruster,
	protocol.CmdMine:       ModuleMine,
	protocol.CmdForceField: ModuleForceField,
	protocol.CmdRepair:     ModuleRepair,
}

// Dispatch validates cmd and forwards it. The returned error reflects
// acceptance of the request only: ErrInvalidTarget for unknown ids,
// ErrRejected for firing a component that is not ready. Physical
// feasibility is the host's concern.
func (d *Dispatcher) Dispatch(cmd Command) error {
	switch cmd.Kind {
	case protocol.CmdVelocity, protocol.CmdRotate:
		// Chassis commands have no target to validate.
	case protocol.CmdAim, protocol.CmdFire, protocol.CmdRepair:
		if !d.profile.HasComponent(cmd.ComponentID) {
			return fmt.Errorf("%w: component %d", ErrInvalidTarget, cmd.ComponentID)
		}
	case protocol.CmdLaser, protocol.CmdScan, protocol.CmdThrust, protocol.CmdMine, protocol.CmdForceField:
		if m := moduleForCmd[cmd.Kind]; !d.profile.HasModule(m) {
			return fmt.Errorf("%w: module %s", ErrInvalidTarget, m)
		}
	default:
		return fmt.Errorf("%w: unknown command kind %q", ErrInvalidTarget, cmd.Kind)
	}

	if cmd.Kind == protocol.CmdFire {
		if s := d.store.Current(); s != nil {
			if st, ok := s.Component(cmd.ComponentID); ok && !st.Ready {
				return fmt.Errorf("%w: component %d on cooldown", ErrRejected, cmd.ComponentID)
			}
		}
	}
	if m, ok := moduleForCmd[cmd.Kind]; ok {
		if s := d.store.Current(); s != nil {
			if st, found := s.Module(m); found && !st.Available {
				return fmt.Errorf("%w: module %s on cooldown", ErrRejected, m)
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink.Send(cmd)
}
