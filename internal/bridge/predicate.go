package bridge

import "math"

// Predicate is a pure readiness condition over recent snapshots. Eval
// must be deterministic, total and free of side effects; it is called at
// most once per published tick per pending await. Most predicates only
// look at w.Latest(); hold-duration predicates set WindowTicks to the
// number of consecutive snapshots they need to inspect.
type Predicate struct {
	WindowTicks int
	Eval        func(w *Window) bool
}

// ModuleAvailable is satisfied when the module's cooldown has expired.
func ModuleAvailable(m Module) Predicate {
	return Predicate{
		WindowTicks: 1,
		Eval: func(w *Window) bool {
			s := w.Latest()
			if s == nil {
				return false
			}
			st, ok := s.Module(m)
			return ok && st.Available
		},
	}
}

// ComponentReady is satisfied when the component's cooldown has expired.
func ComponentReady(id int) Predicate {
	return Predicate{
		WindowTicks: 1,
		Eval: func(w *Window) bool {
			s := w.Latest()
			if s == nil {
				return false
			}
			st, ok := s.Component(id)
			return ok && st.Ready
		},
	}
}

// AimSettled is satisfied once the component's heading has stayed within
// tolerance degrees of angle for holdTicks consecutive observed ticks.
// Any out-of-tolerance tick resets the hold. holdTicks below 1 is
// treated as 1.
func AimSettled(id int, angle, tolerance float64, holdTicks int) Predicate {
	if holdTicks < 1 {
		holdTicks = 1
	}
	return Predicate{
		WindowTicks: holdTicks,
		Eval: func(w *Window) bool {
			if w.Len() < holdTicks {
				return false
			}
			for i := 0; i < holdTicks; i++ {
				st, ok := w.At(i).Component(id)
				if !ok || AngleDistance(st.Heading, angle) > tolerance {
					return false
				}
			}
			return true
		},
	}
}

// AngleDistance is the smallest magnitude difference between two angles
// in degrees, in [0, 180].
func AngleDistance(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return math.Abs(d - 180)
}
