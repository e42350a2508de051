package sim

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ID         string  `yaml:"id"`
	TickRateHz int     `yaml:"tick_rate_hz"`
	Radius     float64 `yaml:"radius"`
	MatchTicks int     `yaml:"match_ticks"`
	Seed       int64   `yaml:"seed"`
	MaxRobots  int     `yaml:"max_robots"`

	// Per-tick movement and rotation limits.
	MaxSpeed        float64 `yaml:"max_speed"`
	RotationRateDeg float64 `yaml:"rotation_rate_deg"`
	ThrustDistance  float64 `yaml:"thrust_distance"`
	RepairAmount    float64 `yaml:"repair_amount"`

	Components []ComponentCfg `yaml:"components"`
	Modules    []ModuleCfg    `yaml:"modules"`
}

type ComponentCfg struct {
	Kind          string `yaml:"kind"`
	CooldownTicks int    `yaml:"cooldown_ticks"`
}

type ModuleCfg struct {
	Name        string `yaml:"name"`
	PeriodTicks int    `yaml:"period_ticks"`
}

// Load reads an arena config. An empty path yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("arena.yaml: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("arena.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "arena_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Radius <= 0 {
		c.Radius = 1000
	}
	if c.MaxRobots <= 0 {
		c.MaxRobots = 8
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = 5
	}
	if c.RotationRateDeg <= 0 {
		c.RotationRateDeg = 12
	}
	if c.ThrustDistance <= 0 {
		c.ThrustDistance = 40
	}
	if c.RepairAmount <= 0 {
		c.RepairAmount = 25
	}
	if len(c.Components) == 0 {
		c.Components = []ComponentCfg{
			{Kind: "RIFLE", CooldownTicks: 25},
			{Kind: "RIFLE", CooldownTicks: 25},
			{Kind: "CANNON", CooldownTicks: 60},
			{Kind: "RIFLE", CooldownTicks: 25},
		}
	}
	for i := range c.Components {
		if c.Components[i].CooldownTicks <= 0 {
			c.Components[i].CooldownTicks = 25
		}
	}
	if len(c.Modules) == 0 {
		c.Modules = []ModuleCfg{
			{Name: "RADAR", PeriodTicks: 40},
			{Name: "GPS", PeriodTicks: 1},
			{Name: "LASER", PeriodTicks: 15},
			{Name: "SCANNER", PeriodTicks: 60},
			{Name: "THRUSTER", PeriodTicks: 100},
			{Name: "MINE", PeriodTicks: 200},
			{Name: "FORCE_FIELD", PeriodTicks: 300},
			{Name: "REPAIR", PeriodTicks: 150},
		}
	}
	for i := range c.Modules {
		if c.Modules[i].PeriodTicks <= 0 {
			c.Modules[i].PeriodTicks = 1
		}
	}
}

func (c *Config) Validate() error {
	if c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz %d too high", c.TickRateHz)
	}
	seen := map[string]struct{}{}
	for _, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("module with empty name")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate module %s", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
