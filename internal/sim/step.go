package sim

import (
	"encoding/json"
	"math"

	"botbeats.net/rbot/internal/protocol"
)

const (
	fireRange     = 400.0
	fireSlackDeg  = 3.0
	fireDamage    = 10.0
	scanRange     = 300.0
	mineRadius    = 30.0
	mineDamage    = 25.0
	mineArmTicks  = 10
	shieldTicks   = 20
	compHealthMax = 50.0
)

type mine struct {
	Pos        vec2
	Owner      string
	PlacedTick uint64
}

// step advances the simulation one tick: leaves, joins and commands in
// arrival order, then physics and sensors, then one TICK per robot.
func (a *Arena) step(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	tick := a.tick.Add(1)
	entry := TickLogEntry{Tick: tick}

	for _, id := range leaves {
		if _, ok := a.robots[id]; ok {
			a.handleLeave(id)
			entry.Leaves = append(entry.Leaves, id)
		}
	}

	for _, req := range joins {
		resp, rec := a.joinRobot(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.ErrCode != "" {
			continue
		}
		entry.Joins = append(entry.Joins, rec)
		if a.index != nil {
			if err := a.index.WriteJoin(tick, rec.RobotID, rec.Name, resp.Welcome.SessionID); err != nil {
				a.log.Printf("index join write: %v", err)
			}
		}
	}

	for i, env := range cmds {
		accepted, code := a.applyCommand(env.RobotID, env.Cmd)
		a.ackCommand(tick, env, accepted, code)
		rec := RecordedCommand{
			Seq:      i,
			RobotID:  env.RobotID,
			CmdID:    env.Cmd.CmdID,
			Kind:     env.Cmd.Kind,
			Accepted: accepted,
			Code:     code,
		}
		entry.Commands = append(entry.Commands, rec)
		if a.index != nil {
			if err := a.index.WriteCommand(tick, rec); err != nil {
				a.log.Printf("index command write: %v", err)
			}
		}
	}

	a.advance(tick)

	destroyed := a.reap(tick)
	entry.Leaves = append(entry.Leaves, destroyed...)

	for id, r := range a.robots {
		out, ok := a.clients[id]
		if !ok {
			continue
		}
		msg := a.tickMsgFor(tick, r)
		b, err := json.Marshal(msg)
		if err != nil {
			a.log.Printf("marshal tick for %s: %v", id, err)
			continue
		}
		sendLatest(out, b)
	}

	entry.Robots = len(a.robots)
	a.robotCount.Store(int64(len(a.robots)))
	if a.tickLogger != nil {
		if err := a.tickLogger.WriteTick(entry); err != nil {
			a.log.Printf("tick log write: %v", err)
		}
	}
	if a.index != nil {
		if err := a.index.WriteTick(entry); err != nil {
			a.log.Printf("index tick write: %v", err)
		}
	}

	if a.cfg.MatchTicks > 0 && tick >= uint64(a.cfg.MatchTicks) && !a.matchOver {
		a.matchOver = true
		a.broadcastBye(tick, "MATCH_OVER")
	}
}

func (a *Arena) applyCommand(robotID string, cmd protocol.CmdMsg) (bool, string) {
	r, ok := a.robots[robotID]
	if !ok {
		return false, protocol.ErrProtoBadRequest
	}

	switch cmd.Kind {
	case protocol.CmdVelocity:
		n := math.Hypot(cmd.X, cmd.Y)
		if n == 0 {
			r.Vel = vec2{}
			r.Speed = 0
			return true, ""
		}
		r.Vel = vec2{X: cmd.X / n, Y: cmd.Y / n}
		r.Speed = math.Min(math.Abs(cmd.Speed), a.cfg.MaxSpeed)
		return true, ""

	case protocol.CmdRotate:
		r.RotateTarget = normAngle(cmd.Angle)
		return true, ""

	case protocol.CmdAim:
		c := r.component(cmd.ComponentID)
		if c == nil {
			return false, protocol.ErrInvalidTarget
		}
		c.AimTarget = normAngle(cmd.Angle)
		return true, ""

	case protocol.CmdFire:
		c := r.component(cmd.ComponentID)
		if c == nil {
			return false, protocol.ErrInvalidTarget
		}
		if !c.ready() {
			return false, protocol.ErrRejected
		}
		c.CooldownLeft = c.CooldownMax
		c.Sticky = cmd.Sticky
		a.fire(r, c)
		return true, ""

	case protocol.CmdLaser:
		m, code := r.useModule("LASER")
		if code != "" {
			return false, code
		}
		r.laserRequested = true
		r.laserAngle = normAngle(cmd.Angle)
		m.CooldownLeft = m.PeriodTicks
		return true, ""

	case protocol.CmdScan:
		m, code := r.useModule("SCANNER")
		if code != "" {
			return false, code
		}
		r.scanRequested = true
		m.CooldownLeft = m.PeriodTicks
		return true, ""

	case protocol.CmdThrust:
		m, code := r.useModule("THRUSTER")
		if code != "" {
			return false, code
		}
		dx, dy := angleToXY(cmd.Angle)
		r.Pos.X += dx * a.cfg.ThrustDistance
		r.Pos.Y += dy * a.cfg.ThrustDistance
		a.clampToArena(r)
		m.CooldownLeft = m.PeriodTicks
		return true, ""

	case protocol.CmdMine:
		m, code := r.useModule("MINE")
		if code != "" {
			return false, code
		}
		a.mines = append(a.mines, mine{Pos: r.Pos, Owner: r.ID, PlacedTick: a.tick.Load()})
		m.CooldownLeft = m.PeriodTicks
		return true, ""

	case protocol.CmdForceField:
		m, code := r.useModule("FORCE_FIELD")
		if code != "" {
			return false, code
		}
		r.shielded = true
		r.shieldLeftTicks = shieldTicks
		m.CooldownLeft = m.PeriodTicks
		return true, ""

	case protocol.CmdRepair:
		m, code := r.useModule("REPAIR")
		if code != "" {
			return false, code
		}
		c := r.component(cmd.ComponentID)
		if c == nil {
			return false, protocol.ErrInvalidTarget
		}
		c.Health = math.Min(compHealthMax, c.Health+a.cfg.RepairAmount)
		m.CooldownLeft = m.PeriodTicks
		return true, ""
	}
	return false, protocol.ErrBadCommand
}

func (r *robot) useModule(name string) (*module, string) {
	m, ok := r.Modules[name]
	if !ok {
		return nil, protocol.ErrInvalidTarget
	}
	if !m.available() {
		return nil, protocol.ErrRejected
	}
	return m, ""
}

func (a *Arena) ackCommand(tick uint64, env CommandEnvelope, accepted bool, code string) {
	out, ok := a.clients[env.RobotID]
	if !ok {
		return
	}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          env.Cmd.CmdID,
		Accepted:        accepted,
		Code:            code,
		Tick:            tick,
	}
	b, err := json.Marshal(ack)
	if err != nil {
		a.log.Printf("marshal ack: %v", err)
		return
	}
	sendLatest(out, b)
}

// advance runs one tick of physics and sensors for every robot.
func (a *Arena) advance(tick uint64) {
	for _, r := range a.robots {
		// Laser and scan echoes live exactly one tick, so a fresh echo
		// is unambiguously the reply to the command that requested it.
		// Radar echoes persist until the next pulse instead.
		r.LaserEcho = nil
		r.ScanEcho = nil

		// Movement.
		r.Pos.X += r.Vel.X * r.Speed
		r.Pos.Y += r.Vel.Y * r.Speed
		a.clampToArena(r)

		// Chassis and component rotation converge toward their targets.
		r.Angle = approachAngle(r.Angle, r.RotateTarget, a.cfg.RotationRateDeg)
		for _, c := range r.Components {
			c.Heading = approachAngle(c.Heading, c.AimTarget, a.cfg.RotationRateDeg)
			if c.CooldownLeft > 0 {
				c.CooldownLeft--
				if c.CooldownLeft == 0 && c.Sticky {
					c.CooldownLeft = c.CooldownMax
					a.fire(r, c)
				}
			}
		}

		for _, m := range r.Modules {
			if m.pulsed {
				m.pulsed = false
				m.CooldownLeft = m.PeriodTicks - 1
			} else if m.CooldownLeft > 0 {
				m.CooldownLeft--
			}
		}

		// RADAR pulses on its own schedule; the stale echo persists
		// between pulses.
		if m, ok := r.Modules["RADAR"]; ok && m.available() {
			if echo := a.radarPulse(r, tick); echo != nil {
				r.RadarEcho = echo
			}
			m.pulsed = true
		}

		if r.laserRequested {
			r.laserRequested = false
			r.LaserEcho = a.laserPulse(r)
		}
		if r.scanRequested {
			r.scanRequested = false
			r.ScanEcho = a.scanPulse(r)
		}

		if r.shieldLeftTicks > 0 {
			r.shieldLeftTicks--
			if r.shieldLeftTicks == 0 {
				r.shielded = false
			}
		}
	}

	a.triggerMines(tick)
}

func (a *Arena) fire(shooter *robot, c *component) {
	for _, t := range a.robots {
		if t.ID == shooter.ID || t.shielded {
			continue
		}
		dx := t.Pos.X - shooter.Pos.X
		dy := t.Pos.Y - shooter.Pos.Y
		dist := math.Hypot(dx, dy)
		if dist > fireRange {
			continue
		}
		if angleDistance(c.Heading, xyToAngle(dx, dy)) > fireSlackDeg {
			continue
		}
		t.Health -= fireDamage
	}
}

func (a *Arena) radarPulse(r *robot, tick uint64) *protocol.RadarEcho {
	var best *robot
	bestDist := math.Inf(1)
	for _, t := range a.robots {
		if t.ID == r.ID {
			continue
		}
		d := math.Hypot(t.Pos.X-r.Pos.X, t.Pos.Y-r.Pos.Y)
		if d < bestDist {
			best, bestDist = t, d
		}
	}
	if best == nil {
		return nil
	}
	return &protocol.RadarEcho{
		X:            best.Pos.X - r.Pos.X,
		Y:            best.Pos.Y - r.Pos.Y,
		Distance:     bestDist,
		DetectedTick: tick,
	}
}

// laserPulse casts a ray from the robot along laserAngle and reports
// the first hit: a robot within the beam, otherwise the arena wall.
func (a *Arena) laserPulse(r *robot) *protocol.LaserEcho {
	var best *robot
	bestDist := math.Inf(1)
	for _, t := range a.robots {
		if t.ID == r.ID {
			continue
		}
		dx := t.Pos.X - r.Pos.X
		dy := t.Pos.Y - r.Pos.Y
		d := math.Hypot(dx, dy)
		if angleDistance(r.laserAngle, xyToAngle(dx, dy)) > 2 {
			continue
		}
		if d < bestDist {
			best, bestDist = t, d
		}
	}
	if best != nil {
		return &protocol.LaserEcho{
			Angle:    r.laserAngle,
			Tag:      "COMPONENT",
			Distance: bestDist,
		}
	}
	return &protocol.LaserEcho{
		Angle:    r.laserAngle,
		Tag:      "WALL",
		Distance: wallDistance(r.Pos, r.laserAngle, a.cfg.Radius),
	}
}

// scanPulse reports every component of every other robot within range,
// positions relative to the scanning robot, plus a MOTHERBOARD object
// at each robot's centre.
func (a *Arena) scanPulse(r *robot) *protocol.ScanEcho {
	echo := &protocol.ScanEcho{Objects: []protocol.ScanObject{}}
	for _, t := range a.robots {
		if t.ID == r.ID {
			continue
		}
		dx := t.Pos.X - r.Pos.X
		dy := t.Pos.Y - r.Pos.Y
		if math.Hypot(dx, dy) > scanRange {
			continue
		}
		echo.Objects = append(echo.Objects, protocol.ScanObject{
			X: dx, Y: dy, Tag: "COMPONENT", Kind: "MOTHERBOARD",
		})
		for _, c := range t.Components {
			cx, cy := angleToXY(c.Heading)
			echo.Objects = append(echo.Objects, protocol.ScanObject{
				X: dx + cx*10, Y: dy + cy*10, Tag: "COMPONENT", Kind: c.Kind,
			})
		}
	}
	return echo
}

func (a *Arena) triggerMines(tick uint64) {
	kept := a.mines[:0]
	for _, m := range a.mines {
		if tick < m.PlacedTick+mineArmTicks {
			kept = append(kept, m)
			continue
		}
		hit := false
		for _, t := range a.robots {
			if t.ID == m.Owner || t.shielded {
				continue
			}
			if math.Hypot(t.Pos.X-m.Pos.X, t.Pos.Y-m.Pos.Y) <= mineRadius {
				t.Health -= mineDamage
				hit = true
			}
		}
		if !hit {
			kept = append(kept, m)
		}
	}
	a.mines = kept
}

// reap removes destroyed robots and tells them why.
func (a *Arena) reap(tick uint64) []string {
	var gone []string
	for id, r := range a.robots {
		if r.Health > 0 {
			continue
		}
		if out, ok := a.clients[id]; ok {
			bye := protocol.ByeMsg{
				Type:            protocol.TypeBye,
				ProtocolVersion: protocol.Version,
				Tick:            tick,
				Reason:          "DESTROYED",
			}
			if b, err := json.Marshal(bye); err == nil {
				sendLatest(out, b)
			}
		}
		gone = append(gone, id)
	}
	for _, id := range gone {
		a.handleLeave(id)
	}
	return gone
}

func (a *Arena) broadcastBye(tick uint64, reason string) {
	bye := protocol.ByeMsg{
		Type:            protocol.TypeBye,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Reason:          reason,
	}
	b, err := json.Marshal(bye)
	if err != nil {
		return
	}
	for _, out := range a.clients {
		sendLatest(out, b)
	}
}

func (a *Arena) tickMsgFor(tick uint64, r *robot) protocol.TickMsg {
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		RobotID:         r.ID,
		Self: protocol.SelfState{
			Angle:     r.Angle,
			VelocityX: r.Vel.X * r.Speed,
			VelocityY: r.Vel.Y * r.Speed,
			Health:    r.Health,
		},
		Modules:    make([]protocol.ModuleState, 0, len(r.Modules)),
		Components: make([]protocol.ComponentState, 0, len(r.Components)),
	}
	tickSec := 1.0 / float64(a.cfg.TickRateHz)
	for _, mc := range a.cfg.Modules {
		m, ok := r.Modules[mc.Name]
		if !ok {
			continue
		}
		msg.Modules = append(msg.Modules, protocol.ModuleState{
			Module:        m.Name,
			Available:     m.available(),
			CooldownTicks: m.CooldownLeft,
			Cooldown:      float64(m.CooldownLeft) * tickSec,
		})
	}
	for _, c := range r.Components {
		msg.Components = append(msg.Components, protocol.ComponentState{
			ID:            c.ID,
			Ready:         c.ready(),
			CooldownTicks: c.CooldownLeft,
			Heading:       c.Heading,
			Health:        c.Health,
			Active:        c.Sticky && c.CooldownLeft > 0,
		})
	}
	msg.Radar = r.RadarEcho
	msg.Laser = r.LaserEcho
	msg.Scan = r.ScanEcho
	if _, ok := r.Modules["GPS"]; ok {
		msg.GPS = &protocol.GPSFix{X: r.Pos.X, Y: r.Pos.Y}
	}
	return msg
}

func (a *Arena) clampToArena(r *robot) {
	d := math.Hypot(r.Pos.X, r.Pos.Y)
	if d <= a.cfg.Radius || d == 0 {
		return
	}
	scale := a.cfg.Radius / d
	r.Pos.X *= scale
	r.Pos.Y *= scale
}

func normAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func angleDistance(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return math.Abs(d - 180)
}

// approachAngle moves cur toward target along the shorter arc, at most
// rate degrees.
func approachAngle(cur, target, rate float64) float64 {
	d := math.Mod(target-cur+180, 360)
	if d < 0 {
		d += 360
	}
	d -= 180
	if math.Abs(d) <= rate {
		return normAngle(target)
	}
	if d > 0 {
		return normAngle(cur + rate)
	}
	return normAngle(cur - rate)
}

func angleToXY(deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

func xyToAngle(x, y float64) float64 {
	return normAngle(math.Atan2(y, x) * 180 / math.Pi)
}

// wallDistance is the distance from p to the arena boundary circle
// along direction deg.
func wallDistance(p vec2, deg float64, radius float64) float64 {
	dx, dy := angleToXY(deg)
	b := p.X*dx + p.Y*dy
	c := p.X*p.X + p.Y*p.Y - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0
	}
	t := -b + math.Sqrt(disc)
	if t < 0 {
		return 0
	}
	return t
}
