package protocol

// TICK (arena -> robot): the full per-tick view for one robot. Published
// exactly once per simulation tick, in strictly increasing tick order.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	RobotID         string `json:"robot_id"`

	Self       SelfState        `json:"self"`
	Modules    []ModuleState    `json:"modules"`
	Components []ComponentState `json:"components"`

	Radar *RadarEcho `json:"radar,omitempty"`
	Laser *LaserEcho `json:"laser,omitempty"`
	Scan  *ScanEcho  `json:"scan,omitempty"`
	GPS   *GPSFix    `json:"gps,omitempty"`
}

type SelfState struct {
	Angle     float64 `json:"angle"` // chassis heading, degrees
	VelocityX float64 `json:"vx"`
	VelocityY float64 `json:"vy"`
	Health    float64 `json:"hp"`
}

type ModuleState struct {
	Module        string  `json:"module"` // e.g. "RADAR"
	Available     bool    `json:"available"`
	CooldownTicks int     `json:"cooldown_ticks"`
	Cooldown      float64 `json:"cooldown_s"`
}

type ComponentState struct {
	ID            int     `json:"id"`
	Ready         bool    `json:"ready"`
	CooldownTicks int     `json:"cooldown_ticks"`
	Heading       float64 `json:"heading"` // degrees, global frame
	Health        float64 `json:"hp"`
	Active        bool    `json:"active"` // mid-fire / sticky firing
}

// RadarEcho is the closest enemy robot relative to ours, as of DetectedTick.
type RadarEcho struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Distance     float64 `json:"distance"`
	DetectedTick uint64  `json:"detected_tick"`
}

type LaserEcho struct {
	Angle    float64  `json:"angle"`
	Tag      string   `json:"tag"` // "WALL", "COMPONENT", "SENTRY"
	Kind     string   `json:"kind,omitempty"`
	Distance float64  `json:"distance"`
	Buffs    []string `json:"buffs,omitempty"`
}

type ScanEcho struct {
	Objects []ScanObject `json:"objects"`
}

type ScanObject struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Tag   string   `json:"tag"`
	Kind  string   `json:"kind,omitempty"`
	Buffs []string `json:"buffs,omitempty"`
}

type GPSFix struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Command kinds carried by CMD.
const (
	CmdVelocity   = "VELOCITY"
	CmdRotate     = "ROTATE"
	CmdAim        = "AIM"
	CmdFire       = "FIRE"
	CmdLaser      = "LASER"
	CmdScan       = "SCAN"
	CmdThrust     = "THRUST"
	CmdMine       = "MINE"
	CmdForceField = "FORCE_FIELD"
	CmdRepair     = "REPAIR"
)

// CMD (robot -> arena): one command intent. Applied by the arena in
// arrival order on the next tick; effects only visible through later
// TICK messages.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"` // tick the robot last observed
	RobotID         string `json:"robot_id"`
	CmdID           string `json:"cmd_id"`
	Kind            string `json:"kind"`

	// VELOCITY
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Speed float64 `json:"speed,omitempty"`

	// ROTATE / AIM / LASER / THRUST
	Angle float64 `json:"angle,omitempty"`

	// AIM / FIRE / REPAIR
	ComponentID int  `json:"component_id,omitempty"`
	Sticky      bool `json:"sticky,omitempty"`
}
