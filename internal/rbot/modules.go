package rbot

import "botbeats.net/rbot/internal/bridge"

// Module re-exports the bridge module set so robot programs only import
// this package.
type Module = bridge.Module

const (
	Teleporter = bridge.ModuleTeleporter
	Radar      = bridge.ModuleRadar
	ForceField = bridge.ModuleForceField
	Laser      = bridge.ModuleLaser
	Mine       = bridge.ModuleMine
	Repair     = bridge.ModuleRepair
	Thruster   = bridge.ModuleThruster
	Scanner    = bridge.ModuleScanner
	GPS        = bridge.ModuleGPS
)
