package rbot

import (
	"botbeats.net/rbot/internal/bridge"
	"botbeats.net/rbot/internal/protocol"
)

// snapshotFromTick maps one TICK wire message onto the bridge snapshot
// model. The result is published once and never mutated afterwards.
func snapshotFromTick(m *protocol.TickMsg) *bridge.Snapshot {
	s := &bridge.Snapshot{
		Tick: m.Tick,
		Self: bridge.SelfState{
			Angle:     m.Self.Angle,
			VelocityX: m.Self.VelocityX,
			VelocityY: m.Self.VelocityY,
			Health:    m.Self.Health,
		},
		Modules:    make(map[bridge.Module]bridge.ModuleState, len(m.Modules)),
		Components: make(map[int]bridge.ComponentState, len(m.Components)),
	}
	for _, ms := range m.Modules {
		mod, ok := bridge.ModuleFromName(ms.Module)
		if !ok {
			continue
		}
		s.Modules[mod] = bridge.ModuleState{
			Available:     ms.Available,
			CooldownTicks: ms.CooldownTicks,
			Cooldown:      ms.Cooldown,
		}
	}
	for _, cs := range m.Components {
		s.Components[cs.ID] = bridge.ComponentState{
			Ready:         cs.Ready,
			CooldownTicks: cs.CooldownTicks,
			Heading:       cs.Heading,
			Health:        cs.Health,
			Active:        cs.Active,
		}
	}
	if m.Radar != nil {
		s.Radar = &bridge.RadarEcho{
			X:            m.Radar.X,
			Y:            m.Radar.Y,
			Distance:     m.Radar.Distance,
			DetectedTick: m.Radar.DetectedTick,
		}
	}
	if m.Laser != nil {
		s.Laser = &bridge.LaserEcho{
			Angle:    m.Laser.Angle,
			Tag:      m.Laser.Tag,
			Kind:     m.Laser.Kind,
			Distance: m.Laser.Distance,
			Buffs:    m.Laser.Buffs,
		}
	}
	if m.Scan != nil {
		objs := make([]bridge.ScanObject, 0, len(m.Scan.Objects))
		for _, o := range m.Scan.Objects {
			objs = append(objs, bridge.ScanObject{
				X:     o.X,
				Y:     o.Y,
				Tag:   o.Tag,
				Kind:  o.Kind,
				Buffs: o.Buffs,
			})
		}
		s.Scan = objs
	}
	if m.GPS != nil {
		s.GPS = &bridge.GPSFix{X: m.GPS.X, Y: m.GPS.Y}
	}
	return s
}
