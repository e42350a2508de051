package sim

import (
	"sort"

	"botbeats.net/rbot/internal/protocol"
)

type vec2 struct {
	X, Y float64
}

type component struct {
	ID           int
	Kind         string
	CooldownMax  int
	CooldownLeft int
	Heading      float64
	AimTarget    float64
	Sticky       bool
	Health       float64
}

func (c *component) ready() bool { return c.CooldownLeft == 0 }

type module struct {
	Name        string
	PeriodTicks int
	// CooldownLeft counts down each tick; the module is available on the
	// ticks where it reaches 0.
	CooldownLeft int
	// pulsed marks an auto-pulsing module that fired this tick; the
	// cooldown restarts on the next tick so availability is visible in
	// the tick it pulsed.
	pulsed bool
}

func (m *module) available() bool { return m.CooldownLeft == 0 }

type robot struct {
	ID        string
	Name      string
	SessionID string

	Pos          vec2
	Vel          vec2 // unit direction
	Speed        float64
	Angle        float64 // chassis heading, degrees
	RotateTarget float64
	Health       float64

	Components []*component
	Modules    map[string]*module

	// Sensor payloads. The radar echo persists (stale) until the next
	// pulse; laser and scan echoes are cleared every tick.
	RadarEcho *protocol.RadarEcho
	LaserEcho *protocol.LaserEcho
	ScanEcho  *protocol.ScanEcho

	// One-tick pulse requests queued by commands.
	laserRequested  bool
	laserAngle      float64
	scanRequested   bool
	shielded        bool
	shieldLeftTicks int
}

func newRobot(id, name, sessionID string, cfg Config, pos vec2) *robot {
	r := &robot{
		ID:        id,
		Name:      name,
		SessionID: sessionID,
		Pos:       pos,
		Health:    100,
		Modules:   make(map[string]*module, len(cfg.Modules)),
	}
	for i, cc := range cfg.Components {
		r.Components = append(r.Components, &component{
			ID:          i,
			Kind:        cc.Kind,
			CooldownMax: cc.CooldownTicks,
			Heading:     90 * float64(i),
			AimTarget:   90 * float64(i),
			Health:      50,
		})
	}
	for _, mc := range cfg.Modules {
		r.Modules[mc.Name] = &module{Name: mc.Name, PeriodTicks: mc.PeriodTicks}
	}
	return r
}

func (r *robot) component(id int) *component {
	if id < 0 || id >= len(r.Components) {
		return nil
	}
	return r.Components[id]
}

func (r *robot) profile() protocol.RobotProfile {
	p := protocol.RobotProfile{}
	for _, c := range r.Components {
		p.Components = append(p.Components, protocol.ComponentSpec{
			ID:            c.ID,
			Kind:          c.Kind,
			CooldownTicks: c.CooldownMax,
			MountAngle:    90 * float64(c.ID),
		})
	}
	for name := range r.Modules {
		p.Modules = append(p.Modules, name)
	}
	sort.Strings(p.Modules)
	return p
}
