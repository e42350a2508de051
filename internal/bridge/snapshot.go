package bridge

import (
	"sync"
	"sync/atomic"
)

// Module identifies a robot subsystem whose availability gates calls.
type Module int

const (
	ModuleTeleporter Module = iota
	ModuleRadar
	ModuleForceField
	ModuleLaser
	ModuleMine
	ModuleRepair
	ModuleThruster
	ModuleScanner
	ModuleGPS
)

var moduleNames = map[Module]string{
	ModuleTeleporter: "TELEPORTER",
	ModuleRadar:      "RADAR",
	ModuleForceField: "FORCE_FIELD",
	ModuleLaser:      "LASER",
	ModuleMine:       "MINE",
	ModuleRepair:     "REPAIR",
	ModuleThruster:   "THRUSTER",
	ModuleScanner:    "SCANNER",
	ModuleGPS:        "GPS",
}

func (m Module) String() string {
	if s, ok := moduleNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// ModuleFromName maps a wire name back to a Module.
func ModuleFromName(name string) (Module, bool) {
	for m, s := range moduleNames {
		if s == name {
			return m, true
		}
	}
	return 0, false
}

// ModuleState is one module's view within a snapshot.
type ModuleState struct {
	Available     bool
	CooldownTicks int
	Cooldown      float64
}

// ComponentState is one actuator slot's view within a snapshot.
type ComponentState struct {
	Ready         bool
	CooldownTicks int
	Heading       float64 // degrees, global frame
	Health        float64
	Active        bool
}

// SelfState is the chassis view within a snapshot.
type SelfState struct {
	Angle     float64
	VelocityX float64
	VelocityY float64
	Health    float64
}

// RadarEcho is the closest enemy relative to our robot as of DetectedTick.
type RadarEcho struct {
	X            float64
	Y            float64
	Distance     float64
	DetectedTick uint64
}

// LaserEcho is the object hit by the last laser pulse.
type LaserEcho struct {
	Angle    float64
	Tag      string
	Kind     string
	Distance float64
	Buffs    []string
}

// ScanObject is one object seen by the 360-degree scanner.
type ScanObject struct {
	X     float64
	Y     float64
	Tag   string
	Kind  string
	Buffs []string
}

// GPSFix is the robot's absolute position from the map center.
type GPSFix struct {
	X float64
	Y float64
}

// Snapshot is the immutable per-tick view of the robot. It is built once
// by the host-facing read loop and must never be mutated after Publish.
type Snapshot struct {
	Tick uint64

	Self       SelfState
	Modules    map[Module]ModuleState
	Components map[int]ComponentState

	Radar *RadarEcho
	Laser *LaserEcho
	Scan  []ScanObject
	GPS   *GPSFix
}

// Module returns the state of m, or false if the snapshot does not carry it.
func (s *Snapshot) Module(m Module) (ModuleState, bool) {
	st, ok := s.Modules[m]
	return st, ok
}

// Component returns the state of the component id, or false if unknown.
func (s *Snapshot) Component(id int) (ComponentState, bool) {
	st, ok := s.Components[id]
	return st, ok
}

// Store holds the latest published snapshot. Single writer (the read
// loop), many readers. Publish replaces the snapshot atomically and then
// synchronously runs the subscribers, so a subscriber never sees a
// half-published tick.
type Store struct {
	cur atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs []func(*Snapshot)
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the latest published snapshot, or nil before the first
// tick arrives. It never blocks.
func (s *Store) Current() *Snapshot {
	return s.cur.Load()
}

// Subscribe registers fn to run on every Publish, after the snapshot is
// visible to Current. Subscribers run on the publisher's goroutine.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Publish installs snap as the current snapshot. Called exactly once per
// host tick, with strictly increasing (not necessarily consecutive) tick
// numbers.
func (s *Store) Publish(snap *Snapshot) {
	s.cur.Store(snap)
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
