package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/retarget/internal/app"
	"github.com/ayusman/retarget/internal/capture"
	"github.com/ayusman/retarget/internal/config"
	"github.com/ayusman/retarget/internal/server"
	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/sink"
	"github.com/ayusman/retarget/internal/source"
	"github.com/ayusman/retarget/internal/store"
	"github.com/ayusman/retarget/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	fmt.Println("Retarget - Avatar Pose Retargeting")

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	dir, err := dataDir()
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := cfg.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(dir, dbPath)
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	sinkDir := cfg.SinkDir
	if sinkDir == "" {
		sinkDir = filepath.Join(dir, "sinks")
	}
	sinks := sink.NewManager(sinkDir, sink.NewExecutor(cfg.SinkTimeoutDuration()))
	if err := sinks.Discover(); err != nil {
		log.Printf("Sink discovery failed: %v", err)
	}
	log.Printf("Loaded %d sinks from %s", len(sinks.List()), sinkDir)

	reg := session.NewRegistry(session.Options{
		Store:        st,
		Retarget:     cfg.Retarget,
		Sinks:        sinks,
		RecordFrames: true,
	})
	defer reg.Close()

	var application *app.App
	src, err := openSource(cfg)
	if err != nil {
		log.Fatalf("Failed to open joint source: %v", err)
	}
	if src != nil {
		application = app.New(app.Config{
			Store:    st,
			Registry: reg,
			Source:   src,
			FPS:      cfg.TickRate,
			Layout:   cfg.Layout,
		})
		if err := application.Start(); err != nil {
			log.Fatalf("Failed to start pipeline: %v", err)
		}
		defer application.Stop()
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Registry:  reg,
	})

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.Tray && application != nil {
		runTray(application, cfg.Addr, errCh)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Printf("Server failed: %v", err)
	case <-sigCh:
		log.Println("Shutting down")
	}
}

// openSource selects the pipeline input: a replay recording, then a camera.
// It returns nil when neither is configured.
func openSource(cfg config.Config) (source.Source, error) {
	switch {
	case cfg.Replay != "":
		return source.OpenReplay(cfg.Replay, true)
	case cfg.Camera != "":
		estCfg := source.DefaultEstimatorConfig()
		estCfg.Command = cfg.Estimator
		est, err := source.NewProcessEstimator(estCfg)
		if err != nil {
			return nil, err
		}
		cam := capture.NewVideoCamera(cfg.Camera, cfg.TickRate)
		log.Printf("Estimating joints from camera %s", cfg.Camera)
		return source.NewCameraSource(cam, est, cfg.MotionThreshold), nil
	default:
		return nil, nil
	}
}

// runTray blocks on the tray menu until Quit is chosen.
func runTray(application *app.App, addr string, errCh <-chan error) {
	t := tray.New()
	if l := application.Session(); l != nil {
		c := l.Animator.Config()
		t.SetState(tray.ToggleFlip, c.UseFlip)
		t.SetState(tray.ToggleRootMotion, c.RootMotion)
		t.SetState(tray.ToggleDebug, l.Animator.Debug())

		results, cancel := l.Subscribe()
		defer cancel()
		go func() {
			for res := range results {
				t.SetFrames(res.Sequence)
			}
		}()
	}

	t.OnToggle(func(tg tray.Toggle, on bool) {
		var err error
		switch tg {
		case tray.ToggleEnabled:
			application.SetEnabled(on)
		case tray.ToggleFlip:
			err = application.SetFlip(on)
		case tray.ToggleRootMotion:
			err = application.SetRootMotion(on)
		case tray.ToggleDebug:
			err = application.SetDebug(on)
		}
		if err != nil {
			log.Printf("Error applying toggle: %v", err)
		}
	})
	t.OnSettings(func() {
		log.Printf("Settings available at http://%s/", addr)
	})

	go func() {
		if err := <-errCh; err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	t.Run()
}

// dataDir returns ~/.retarget, creating it when missing.
func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".retarget")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.retarget/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".retarget", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
