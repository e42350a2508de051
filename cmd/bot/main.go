// A sample sentry bot: drift upward, wait for a radar contact, then
// swing every weapon onto the contact and fire as each comes off
// cooldown.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"

	"botbeats.net/rbot/internal/rbot"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "sentry", "robot name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := rbot.Dial(*url, *name, rbot.WithLogger(logger))
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer c.Close()
	logger.Printf("joined as %s (session %s)", c.RobotID(), c.SessionID())

	if err := c.Velocity(0, 1, 3); err != nil {
		logger.Fatalf("velocity: %v", err)
	}

	for ctx.Err() == nil {
		if err := c.AwaitModule(ctx, rbot.Radar); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Printf("await radar: %v", err)
			continue
		}
		echo, ok := c.Radar()
		if !ok {
			continue
		}
		target := rbot.XYToAngle(echo.X, echo.Y)
		logger.Printf("contact at %.1f deg, %.0f away (tick %d)", target, echo.Distance, echo.DetectedTick)

		for _, comp := range c.Profile().Components {
			id := comp.ID
			// Aim takes a global angle; the arena steers each component's
			// global heading toward it regardless of the mount offset.
			if err := c.AwaitAim(ctx, id, target, 0.5, 3, rbot.WithDeadlineTicks(200)); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Printf("component %d never settled: %v", id, err)
				continue
			}
			if err := c.AwaitComponent(ctx, id, rbot.WithDeadlineTicks(400)); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Printf("component %d not ready: %v", id, err)
				continue
			}
			if err := c.UseComponent(id, false); err != nil {
				logger.Printf("fire %d: %v", id, err)
			}
		}
	}
}
