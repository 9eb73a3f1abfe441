package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retarget/internal/config"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/source"
	"github.com/ayusman/retarget/internal/store"
)

func newTestApp(t *testing.T, src source.Source) (*App, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := session.NewRegistry(session.Options{
		Store:        s,
		Retarget:     config.DefaultConfig().Retarget,
		RecordFrames: true,
	})
	t.Cleanup(reg.Close)

	return New(Config{Store: s, Registry: reg, Source: src, FPS: 100}), s
}

func waitDone(t *testing.T, a *App) {
	t.Helper()
	done := a.Done()
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestApp_PipelineSolvesFrames(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(source.UprightFrame())
	a, s := newTestApp(t, src)

	require.NoError(t, a.Start())
	defer a.Stop()

	l := a.Session()
	require.NotNil(t, l)

	require.Eventually(t, func() bool {
		n, err := s.Frames().Count(l.Session.ID)
		return err == nil && n >= 3
	}, 5*time.Second, 10*time.Millisecond)

	res := l.Animator.Last()
	assert.NotZero(t, res.Sequence)
	assert.NotEmpty(t, res.Rotations)

	rg, err := s.Rigs().GetByName(DefaultRigName)
	require.NoError(t, err)
	assert.Equal(t, rg.ID, l.Session.RigID)
}

func TestApp_ReplayExhausted(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Encode(source.UprightFrame()))
	}
	src, err := source.NewReplaySource(&buf, false)
	require.NoError(t, err)

	a, s := newTestApp(t, src)
	require.NoError(t, a.Start())
	waitDone(t, a)

	n, err := s.Frames().Count(a.Session().Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a.Stop()
}

func TestApp_RestartAfterExhausted(t *testing.T) {
	src := source.NewMockSource()
	a, s := newTestApp(t, src)

	require.NoError(t, a.Start())
	waitDone(t, a)
	first := a.Done()

	src.SetFrames(source.UprightFrame())
	require.NoError(t, a.Start())
	assert.NotEqual(t, first, a.Done(), "Start should launch a new pipeline")

	id := a.Session().Session.ID
	require.Eventually(t, func() bool {
		n, err := s.Frames().Count(id)
		return err == nil && n > 0
	}, 5*time.Second, 10*time.Millisecond)
	a.Stop()
	assert.Nil(t, a.Done())
}

func TestApp_EmptyFramesAreSkipped(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(pose.Frame{Timestamp: time.Now()})
	a, s := newTestApp(t, src)

	require.NoError(t, a.Start())
	require.Eventually(t, func() bool { return src.Calls() >= 3 }, 5*time.Second, 10*time.Millisecond)
	a.Stop()

	n, err := s.Frames().Count(a.Session().Session.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, src.IsClosed())
}

func TestApp_Disabled(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(source.UprightFrame())
	a, _ := newTestApp(t, src)
	a.SetEnabled(false)
	assert.False(t, a.IsEnabled())

	require.NoError(t, a.Start())
	time.Sleep(50 * time.Millisecond)
	a.Stop()

	assert.Zero(t, src.Calls())
}

func TestApp_StartWithoutSource(t *testing.T) {
	a, _ := newTestApp(t, nil)
	assert.Error(t, a.Start())
	assert.Nil(t, a.Session())
}

func TestApp_StartTwice(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(source.UprightFrame())
	a, _ := newTestApp(t, src)

	require.NoError(t, a.Start())
	first := a.Session()
	require.NoError(t, a.Start())
	assert.Same(t, first, a.Session())
	a.Stop()
	a.Stop()
}

func TestApp_TogglesPersist(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(source.UprightFrame())
	a, s := newTestApp(t, src)

	// Before start the toggles only persist.
	require.NoError(t, a.SetFlip(true))
	require.NoError(t, a.Start())
	defer a.Stop()

	l := a.Session()
	assert.True(t, l.Animator.Config().UseFlip)
	assert.True(t, l.Session.Flip)

	require.NoError(t, a.SetRootMotion(true))
	assert.True(t, l.Animator.Config().RootMotion)
	assert.True(t, l.Animator.Config().UseFlip)
	assert.True(t, s.Settings().GetBool(SettingRootMotion, false))

	require.NoError(t, a.SetDebug(false))
	assert.False(t, l.Animator.Debug())
	assert.False(t, s.Settings().GetBool(SettingDebug, true))

	stored, err := s.Sessions().GetByID(l.Session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Flip)
	assert.True(t, stored.RootMotion)
}

func TestApp_ReusesRig(t *testing.T) {
	src := source.NewMockSource()
	src.SetFrames(source.UprightFrame())
	a, s := newTestApp(t, src)

	rg := &store.Rig{ID: "existing", Name: DefaultRigName, Layout: store.LayoutArmsDown}
	require.NoError(t, s.Rigs().Create(rg))

	require.NoError(t, a.Start())
	defer a.Stop()
	assert.Equal(t, "existing", a.Session().Session.RigID)
}
