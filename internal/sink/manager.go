package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// ManifestFile is the manifest name looked up in each sink directory.
const ManifestFile = "sink.json"

// ErrSinkNotFound is returned when a requested sink cannot be found.
var ErrSinkNotFound = errors.New("sink not found")

// Manager discovers sinks and fans frames out to them.
type Manager struct {
	sinkDir  string
	executor *Executor
	sinks    map[string]*Sink
	mu       sync.RWMutex
}

// NewManager creates a new Manager for the given sink directory.
func NewManager(sinkDir string, executor *Executor) *Manager {
	return &Manager{
		sinkDir:  sinkDir,
		executor: executor,
		sinks:    make(map[string]*Sink),
	}
}

// Discover scans the sink directory for sink.json manifests. Each
// subdirectory is expected to hold one sink. Unreadable or invalid manifests
// are skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinks = make(map[string]*Sink)

	info, err := os.Stat(m.sinkDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.sinkDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sinkPath := filepath.Join(m.sinkDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(sinkPath, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Printf("Skipping sink %s: %v", entry.Name(), err)
			continue
		}
		bones, err := manifest.boneMap()
		if err != nil {
			log.Printf("Skipping sink %s: %v", entry.Name(), err)
			continue
		}

		m.sinks[manifest.Name] = &Sink{
			Manifest:   manifest,
			Path:       sinkPath,
			Executable: filepath.Join(sinkPath, manifest.Executable),
			Bones:      bones,
		}
	}

	return nil
}

// Get returns a sink by name.
func (m *Manager) Get(name string) (*Sink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sinks[name]
	if !ok {
		return nil, ErrSinkNotFound
	}
	return s, nil
}

// List returns all discovered sinks sorted by name.
func (m *Manager) List() []*Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sinks := make([]*Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		sinks = append(sinks, s)
	}
	sort.Slice(sinks, func(i, j int) bool {
		return sinks[i].Manifest.Name < sinks[j].Manifest.Name
	})
	return sinks
}

// SinkDir returns the sink directory path.
func (m *Manager) SinkDir() string {
	return m.sinkDir
}

// NewRequest renames a rotation set into a sink's bone names.
func NewRequest(s *Sink, session string, sequence int64, rot retarget.BoneRotationSet, root geom.Vec3) *Request {
	named, unmapped := s.Bones.Rename(rot)
	req := &Request{
		Session:   session,
		Sequence:  sequence,
		Rotations: make(map[string]Rotation, len(named)),
		Root:      [3]float64{root.X, root.Y, root.Z},
		Unmapped:  unmapped,
	}
	for name, q := range named {
		req.Rotations[name] = wireRotation(q)
	}
	return req
}

// Send delivers a frame to every sink in parallel. Failures are joined into
// the returned error; a failing sink does not stop the others.
func (m *Manager) Send(ctx context.Context, session string, sequence int64, rot retarget.BoneRotationSet, root geom.Vec3) error {
	sinks := m.List()
	errs := make([]error, len(sinks))

	var wg sync.WaitGroup
	for i, s := range sinks {
		wg.Add(1)
		go func(i int, s *Sink) {
			defer wg.Done()
			req := NewRequest(s, session, sequence, rot, root)
			if _, err := m.executor.Execute(ctx, s, req); err != nil {
				errs[i] = fmt.Errorf("sink %s: %w", s.Manifest.Name, err)
			}
		}(i, s)
	}
	wg.Wait()

	return errors.Join(errs...)
}
