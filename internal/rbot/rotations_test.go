package rbot

import (
	"math"
	"testing"

	"botbeats.net/rbot/internal/bridge"
)

func TestComponentFrameRoundTrip(t *testing.T) {
	for id := 0; id < 4; id++ {
		for _, angle := range []float64{0, 45, 90, 180, 270, 359} {
			local := ToComponentFrame(id, angle)
			back := FromComponentFrame(id, local)
			if math.Abs(back-angle) > 1e-9 {
				t.Fatalf("frame round trip broke for id=%d angle=%v: got %v", id, angle, back)
			}
		}
	}
	if got := ToComponentFrame(1, 90); got != 0 {
		t.Fatalf("ToComponentFrame(1, 90) = %v, want 0", got)
	}
	if got := ToComponentFrame(2, 0); got != -180 {
		t.Fatalf("ToComponentFrame(2, 0) = %v, want -180", got)
	}
}

func TestXYToAngle(t *testing.T) {
	cases := []struct {
		x, y, want float64
	}{
		{1, 0, 0},
		{0, 1, 90},
		{-1, 0, 180},
		{0, -1, -90},
		{1, 1, 45},
	}
	for _, c := range cases {
		if got := XYToAngle(c.x, c.y); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("XYToAngle(%v,%v) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestAngleToXY(t *testing.T) {
	x, y := AngleToXY(90)
	if math.Abs(x) > 1e-9 || math.Abs(y-1) > 1e-9 {
		t.Fatalf("AngleToXY(90) = (%v,%v), want (0,1)", x, y)
	}
	x, y = AngleToXY(0)
	if math.Abs(x-1) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Fatalf("AngleToXY(0) = (%v,%v), want (1,0)", x, y)
	}
}

func TestReduceScanToBot(t *testing.T) {
	if _, ok := ReduceScanToBot(nil); ok {
		t.Fatalf("empty scan must not produce a bot")
	}

	// No motherboard in sight: average of the components.
	objs := []bridge.ScanObject{
		{X: 10, Y: 0, Tag: TagComponent, Kind: "RIFLE"},
		{X: 20, Y: 10, Tag: TagComponent, Kind: "RIFLE"},
		{X: 500, Y: 500, Tag: TagWall},
	}
	bot, ok := ReduceScanToBot(objs)
	if !ok || bot.X != 15 || bot.Y != 5 || bot.Tag != TagBot {
		t.Fatalf("component average wrong: %+v ok=%v", bot, ok)
	}

	// Motherboard wins over the average.
	objs = append(objs, bridge.ScanObject{X: 18, Y: 7, Tag: TagComponent, Kind: KindMotherboard})
	bot, ok = ReduceScanToBot(objs)
	if !ok || bot.X != 18 || bot.Y != 7 {
		t.Fatalf("motherboard position should win: %+v ok=%v", bot, ok)
	}
}
