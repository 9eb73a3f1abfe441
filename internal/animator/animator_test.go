package animator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/retarget"
	"github.com/ayusman/retarget/internal/rig"
	"github.com/ayusman/retarget/internal/source"
)

const tolerance = 1e-5

func newAnimator(t *testing.T, config retarget.Config) (*Animator, *rig.Humanoid) {
	t.Helper()
	h, err := rig.NewHumanoid(rig.ArmsDownLayout())
	require.NoError(t, err)
	a, err := New(h, config)
	require.NoError(t, err)
	return a, h
}

func assertIdentity(t *testing.T, rot retarget.BoneRotationSet) {
	t.Helper()
	for _, b := range retarget.SolvedBones {
		assert.True(t, rot.Get(b).ApproxEqual(geom.Identity(), tolerance), "%s: expected identity, got %v", b, rot.Get(b))
	}
}

func TestAnimator_UprightIsRest(t *testing.T) {
	a, h := newAnimator(t, retarget.DefaultConfig())

	for i := 1; i <= 3; i++ {
		res, err := a.Update(source.UprightFrame())
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.Sequence)
		assertIdentity(t, res.Rotations)
		assert.Equal(t, geom.Vec3{}, res.Root)
		assert.Len(t, res.Joints, len(pose.JointArrayOrder))
	}

	for _, b := range []retarget.Bone{retarget.LeftUpperLeg, retarget.RightLowerArm, retarget.Chest} {
		assert.True(t, h.LocalRotation(b).ApproxEqual(h.RestLocalRotation(b), tolerance), "%s left rest", b)
	}
}

func TestAnimator_InputRotation(t *testing.T) {
	config := retarget.DefaultConfig()
	config.InputRotation = geom.FromEuler(0, 0, 90)
	a, _ := newAnimator(t, config)

	res, err := a.Update(source.UprightFrame())
	require.NoError(t, err)

	want := config.InputRotation.Rotate(geom.Vec3{X: -1, Y: 2})
	got := res.Joints[pose.LeftShoulder]
	assert.True(t, geom.ApproxEqualVec(want, got, tolerance), "expected %v, got %v", want, got)
}

func TestAnimator_ZeroConfigRotations(t *testing.T) {
	a, _ := newAnimator(t, retarget.Config{})
	res, err := a.Update(source.UprightFrame())
	require.NoError(t, err)
	assert.True(t, geom.ApproxEqualVec(geom.Vec3{X: -1, Y: 2}, res.Joints[pose.LeftShoulder], tolerance))
	assertIdentity(t, res.Rotations)
}

func TestAnimator_RootMotion(t *testing.T) {
	config := retarget.DefaultConfig()
	config.RootMotion = true
	config.Offset = geom.Vec3{Y: 1}
	a, h := newAnimator(t, config)

	res, err := a.Update(source.UprightFrame())
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3{Y: 1}, res.Root)
	assert.Equal(t, geom.Vec3{Y: 1}, h.RootPosition())

	a.SetRootMotion(false)
	assert.False(t, a.Config().RootMotion)
	res, err = a.Update(source.UprightFrame())
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3{}, res.Root)
}

func TestAnimator_MissingJointHolds(t *testing.T) {
	a, _ := newAnimator(t, retarget.DefaultConfig())

	bent := source.UprightFrame()
	for i, s := range bent.Samples {
		if s.Name == pose.LeftAnkle {
			bent.Samples[i].Position = geom.Vec3{X: -1, Y: -1, Z: 1}
		}
	}
	first, err := a.Update(bent)
	require.NoError(t, err)
	lower := first.Rotations.Get(retarget.LeftLowerLeg)
	require.False(t, lower.ApproxEqual(geom.Identity(), tolerance))

	res, err := a.Update(source.WithoutJoints(source.UprightFrame(), pose.LeftAnkle))
	require.NoError(t, err)
	assert.True(t, res.Rotations.Get(retarget.LeftLowerLeg).ApproxEqual(lower, tolerance))
	assert.NotContains(t, res.Joints, pose.LeftAnkle)
}

func TestAnimator_UpdateFromArray(t *testing.T) {
	a, _ := newAnimator(t, retarget.DefaultConfig())

	var values []float64
	for _, s := range source.UprightFrame().Samples {
		values = append(values, s.Position.X, s.Position.Y, s.Position.Z)
	}
	res, err := a.UpdateFromArray(values)
	require.NoError(t, err)
	assertIdentity(t, res.Rotations)

	_, err = a.UpdateFromArray([]float64{1, 2})
	assert.Error(t, err)
}

func TestAnimator_Debug(t *testing.T) {
	a, _ := newAnimator(t, retarget.DefaultConfig())
	require.True(t, a.Debug())

	_, err := a.Update(source.UprightFrame())
	require.NoError(t, err)
	for _, m := range a.Scene().Markers {
		assert.True(t, m.Visible, m.Joint)
	}

	a.SetDebug(false)
	_, err = a.Update(source.WithoutJoints(source.UprightFrame(), pose.Nose))
	require.NoError(t, err)
	for _, m := range a.Scene().Markers {
		assert.True(t, m.Visible, "%s changed while debug was off", m.Joint)
	}
}

func TestAnimator_Reset(t *testing.T) {
	a, _ := newAnimator(t, retarget.DefaultConfig())
	_, err := a.Update(source.TPoseFrame())
	require.NoError(t, err)
	require.NotEmpty(t, a.Joints())

	a.Reset()
	assert.Empty(t, a.Joints())
	assert.Equal(t, int64(0), a.Last().Sequence)
	assertIdentity(t, a.Last().Rotations)
}

func TestAnimator_Concurrent(t *testing.T) {
	a, _ := newAnimator(t, retarget.DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.SetFlip(i%2 == 0)
			if _, err := a.Update(source.UprightFrame()); err != nil {
				t.Error(err)
			}
			_ = a.Joints()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(8), a.Last().Sequence)
}
