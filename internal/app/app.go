// Package app runs the retargeting pipeline: frames from a joint source are
// solved on a live session and fanned out to the store, sinks and
// subscribers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/source"
	"github.com/ayusman/retarget/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the tick rate while the source reports no subject.
	IdleFPS = 5
	// ActiveFPS is the default tick rate while a subject is tracked.
	ActiveFPS = 30
	// IdleTimeout is how long the source may report no subject before the
	// pipeline drops to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// Setting keys persisted for the pipeline session.
const (
	SettingFlip       = "pipeline.flip"
	SettingRootMotion = "pipeline.root_motion"
	SettingDebug      = "pipeline.debug"
)

// DefaultRigName names the rig created for the pipeline when none exists.
const DefaultRigName = "default"

// Config holds configuration options for the application.
type Config struct {
	Store    *store.Store
	Registry *session.Registry
	Source   source.Source
	// FPS is the active tick rate. Zero selects ActiveFPS.
	FPS int
	// RigName and Layout select the rig profile driven by the pipeline.
	RigName string
	Layout  string
}

// App is the main application that drives one pipeline session from a source.
type App struct {
	config  Config
	enabled bool
	live    *session.Live
	mu      sync.RWMutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = ActiveFPS
	}
	if config.RigName == "" {
		config.RigName = DefaultRigName
	}
	if config.Layout == "" {
		config.Layout = store.LayoutDefault
	}
	return &App{
		config:  config,
		enabled: true,
	}
}

// SetEnabled enables or disables frame processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frame processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Session returns the pipeline session, or nil before Start.
func (a *App) Session() *session.Live {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// ensureRig returns the configured rig, creating it on first run.
func (a *App) ensureRig() (*store.Rig, error) {
	rg, err := a.config.Store.Rigs().GetByName(a.config.RigName)
	if err == nil {
		return rg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	rg = &store.Rig{ID: uuid.New().String(), Name: a.config.RigName, Layout: a.config.Layout}
	if err := a.config.Store.Rigs().Create(rg); err != nil {
		return nil, fmt.Errorf("create rig %s: %w", a.config.RigName, err)
	}
	log.Printf("Created rig %s (%s)", rg.Name, rg.Layout)
	return rg, nil
}

// startSession creates the pipeline session with the persisted toggles.
func (a *App) startSession() (*session.Live, error) {
	rg, err := a.ensureRig()
	if err != nil {
		return nil, err
	}

	settings := a.config.Store.Settings()
	l, err := a.config.Registry.Create(rg.ID,
		settings.GetBool(SettingFlip, false),
		settings.GetBool(SettingRootMotion, false))
	if err != nil {
		return nil, err
	}
	l.Animator.SetDebug(settings.GetBool(SettingDebug, true))
	return l, nil
}

// Start creates the pipeline session and begins pulling frames.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running. A pipeline that ended on its own
	// (exhausted source) is released so it can be started again.
	if a.stopCh != nil {
		select {
		case <-a.doneCh:
			a.stopCh, a.doneCh = nil, nil
		default:
			return nil
		}
	}
	if a.config.Source == nil {
		return errors.New("app: no joint source configured")
	}

	if a.live == nil {
		l, err := a.startSession()
		if err != nil {
			return err
		}
		a.live = l
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.live.Session.ID, a.stopCh, a.doneCh)

	log.Printf("Pipeline started on session %s", a.live.Session.ID)
	return nil
}

// Stop halts the pipeline and closes the source.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.config.Source.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
	log.Println("Pipeline stopped")
}

// Done returns a channel closed when the running pipeline exits, or nil when
// it is not running.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// SetFlip toggles mirroring on the pipeline session and persists it.
func (a *App) SetFlip(on bool) error {
	l := a.Session()
	if l == nil {
		return a.config.Store.Settings().SetBool(SettingFlip, on)
	}
	cfg := l.Animator.Config()
	if _, err := a.config.Registry.SetToggles(l.Session.ID, on, cfg.RootMotion); err != nil {
		return err
	}
	return a.config.Store.Settings().SetBool(SettingFlip, on)
}

// SetRootMotion toggles root motion on the pipeline session and persists it.
func (a *App) SetRootMotion(on bool) error {
	l := a.Session()
	if l == nil {
		return a.config.Store.Settings().SetBool(SettingRootMotion, on)
	}
	cfg := l.Animator.Config()
	if _, err := a.config.Registry.SetToggles(l.Session.ID, cfg.UseFlip, on); err != nil {
		return err
	}
	return a.config.Store.Settings().SetBool(SettingRootMotion, on)
}

// SetDebug toggles the debug overlay on the pipeline session and persists it.
func (a *App) SetDebug(on bool) error {
	if l := a.Session(); l != nil {
		l.Animator.SetDebug(on)
	}
	return a.config.Store.Settings().SetBool(SettingDebug, on)
}

// tick processes one frame. It reports whether the source saw a subject.
func (a *App) tick(ctx context.Context, id string) (bool, error) {
	f, err := a.config.Source.Next(ctx)
	if err != nil {
		return false, err
	}
	if len(f.Samples) == 0 {
		return false, nil
	}
	if _, err := a.config.Registry.Push(ctx, id, f); err != nil {
		return true, fmt.Errorf("push frame: %w", err)
	}
	return true, nil
}
