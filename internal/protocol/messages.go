package protocol

// HELLO (robot -> arena)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	RobotName       string            `json:"robot_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (arena -> robot)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	RobotID         string       `json:"robot_id"`
	SessionID       string       `json:"session_id"`
	Profile         RobotProfile `json:"profile"`
	ArenaParams     ArenaParams  `json:"arena_params"`
}

// RobotProfile describes the loadout the arena assigned to the robot.
// Command validation on the SDK side is driven by this.
type RobotProfile struct {
	Components []ComponentSpec `json:"components"`
	Modules    []string        `json:"modules"`
}

type ComponentSpec struct {
	ID            int     `json:"id"`
	Kind          string  `json:"kind"` // e.g. "RIFLE"
	CooldownTicks int     `json:"cooldown_ticks"`
	MountAngle    float64 `json:"mount_angle"` // degrees, component frame offset
}

type ArenaParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	Radius     float64 `json:"radius"`
	MatchTicks int     `json:"match_ticks,omitempty"`
	Seed       int64   `json:"seed"`
}

// BYE (arena -> robot): robot destroyed or match over.
type ByeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Reason          string `json:"reason"` // "DESTROYED", "MATCH_OVER"
}

// ACK (arena -> robot): immediate outcome of one CMD.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Tick            uint64 `json:"tick,omitempty"`
}
