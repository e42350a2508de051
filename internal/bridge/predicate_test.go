package bridge

import (
	"context"
	"math"
	"testing"
	"time"
)

func aimSnap(tick uint64, heading float64) *Snapshot {
	return &Snapshot{
		Tick: tick,
		Components: map[int]ComponentState{
			1: {Ready: true, Heading: heading},
		},
	}
}

func TestAngleDistance(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{30, 350, 40},
		{350, 30, 40},
		{90, 270, 180},
		{-10, 10, 20},
		{720, 0, 0},
	}
	for _, c := range cases {
		got := AngleDistance(c.a, c.b)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("AngleDistance(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestModuleAvailableUnknownModuleIsFalse(t *testing.T) {
	w := newWindow(1)
	w.push(&Snapshot{Tick: 1, Modules: map[Module]ModuleState{}})
	if ModuleAvailable(ModuleGPS).Eval(w) {
		t.Fatalf("unknown module must evaluate to not-ready, not panic")
	}
}

func TestComponentReadyUnknownComponentIsFalse(t *testing.T) {
	w := newWindow(1)
	w.push(&Snapshot{Tick: 1, Components: map[int]ComponentState{}})
	if ComponentReady(9).Eval(w) {
		t.Fatalf("unknown component must evaluate to not-ready, not panic")
	}
}

func TestAimSettledHoldResetsOnOutOfTolerance(t *testing.T) {
	// Hold of 3: in tolerance at ticks 0,1, out at 2, back in at 3,4,5.
	// Satisfaction may only happen at tick 5.
	p := AimSettled(1, 90, 0.5, 3)
	w := newWindow(p.WindowTicks)

	headings := []float64{90.1, 89.9, 92.0, 90.2, 90.0, 89.8}
	satisfiedAt := -1
	for i, h := range headings {
		w.push(aimSnap(uint64(i), h))
		if p.Eval(w) {
			satisfiedAt = i
			break
		}
	}
	if satisfiedAt != 5 {
		t.Fatalf("hold must reset on the out-of-tolerance tick; satisfied at %d, want 5", satisfiedAt)
	}
}

func TestAimSettledNeedsFullWindow(t *testing.T) {
	p := AimSettled(1, 0, 1.0, 4)
	w := newWindow(p.WindowTicks)
	for i := 0; i < 3; i++ {
		w.push(aimSnap(uint64(i), 0.2))
		if p.Eval(w) {
			t.Fatalf("satisfied after %d ticks, hold requires 4", i+1)
		}
	}
	w.push(aimSnap(3, 0.2))
	if !p.Eval(w) {
		t.Fatalf("should be satisfied after 4 consecutive in-tolerance ticks")
	}
}

func TestAimSettledHoldOfOneImmediate(t *testing.T) {
	store := NewStore()
	a := NewAwaiter(store)
	store.Publish(aimSnap(1, 45.2))

	done := make(chan error, 1)
	go func() { done <- a.Await(context.Background(), AimSettled(1, 45, 0.5, 1)) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("await: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("hold of 1 with heading in tolerance must resolve immediately")
	}
}

func TestWindowRing(t *testing.T) {
	w := newWindow(3)
	if w.Latest() != nil {
		t.Fatalf("empty window should have no latest")
	}
	for i := uint64(1); i <= 5; i++ {
		w.push(&Snapshot{Tick: i})
	}
	if w.Len() != 3 {
		t.Fatalf("window len = %d, want 3", w.Len())
	}
	for i, want := range []uint64{5, 4, 3} {
		s := w.At(i)
		if s == nil || s.Tick != want {
			t.Fatalf("At(%d) = %+v, want tick %d", i, s, want)
		}
	}
	if w.At(3) != nil {
		t.Fatalf("out-of-range lookup should return nil")
	}
}
