package rbot

import (
	"math"

	"botbeats.net/rbot/internal/bridge"
)

// Components are mounted 90 degrees apart around the chassis; these
// helpers convert a global aim angle to and from a component's local
// reference frame.

func ToComponentFrame(componentID int, angle float64) float64 {
	return angle - 90*float64(componentID)
}

func FromComponentFrame(componentID int, angle float64) float64 {
	return angle + 90*float64(componentID)
}

// AngleDistance is the smallest magnitude difference between two angles
// in degrees, in [0, 180].
func AngleDistance(a, b float64) float64 {
	return bridge.AngleDistance(a, b)
}

// XYToAngle converts a direction vector to the angle in degrees from the
// positive x-axis, in (-180, 180].
func XYToAngle(x, y float64) float64 {
	return math.Atan2(y, x) * 180 / math.Pi
}

// AngleToXY converts an angle in degrees to the unit direction vector.
func AngleToXY(angle float64) (x, y float64) {
	rad := angle * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}
