package scheduler

import (
	"context"
	"log"
	"time"
)

type Task func(ctx context.Context, now time.Time) error

// Every runs task once immediately and then on every interval until ctx is
// done. Runs never overlap: a slow task delays the next tick.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	run := func(now time.Time) {
		if err := task(ctx, now); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}
	}

	run(time.Now())

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			run(now)
		}
	}
}
