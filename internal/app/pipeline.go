package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ayusman/retarget/internal/source"
)

// runPipeline is the main loop that pulls frames from the source into the
// pipeline session.
//
// Pipeline logic:
// 1. Start in active mode (config.FPS)
// 2. Read the next frame and solve it on the session
// 3. After IdleTimeout without a subject, drop to IdleFPS
// 4. On the next tracked frame, switch back to active mode
// 5. Stop when the source is exhausted or Stop is called
func (a *App) runPipeline(id string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	activeInterval := time.Second / time.Duration(a.config.FPS)
	idleInterval := time.Second / time.Duration(IdleFPS)

	activeMode := true
	lastSeen := time.Now()

	ticker := time.NewTicker(activeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Skip processing if the pipeline is disabled
			if !a.IsEnabled() {
				continue
			}

			seen, err := a.tick(ctx, id)
			if err != nil {
				if errors.Is(err, source.ErrExhausted) {
					log.Println("Joint source exhausted")
					return
				}
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error processing frame: %v", err)
				continue
			}

			if seen {
				lastSeen = time.Now()
				if !activeMode {
					activeMode = true
					ticker.Reset(activeInterval)
					log.Println("Switched to active mode")
				}
			} else if activeMode && time.Since(lastSeen) > IdleTimeout {
				activeMode = false
				ticker.Reset(idleInterval)
				log.Println("Switched to idle mode")
			}
		}
	}
}
