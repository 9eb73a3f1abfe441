package retarget

import (
	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
)

// Config holds the options recognized by the solver and the rig binder.
type Config struct {
	// UseFlip swaps left and right joints wholesale, for mirrored camera views.
	UseFlip bool
	// UseAdditionalRotation applies PreRotation to the hips.
	UseAdditionalRotation bool
	PreRotation           geom.Quat
	// RootMotion moves the rig root to the mid-hip position plus Offset.
	RootMotion bool
	Offset     geom.Vec3
	// DebugOffset shifts the debug markers away from the rig.
	DebugOffset geom.Vec3
	// HistoryWindowSize is the number of samples kept per joint.
	HistoryWindowSize int
	// SpatialSmoothingRadius gates which samples are averaged.
	SpatialSmoothingRadius float64
	// InputRotation is applied to every incoming joint position.
	InputRotation geom.Quat
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig() Config {
	return Config{
		PreRotation:            geom.Identity(),
		HistoryWindowSize:      pose.DefaultWindowSize,
		SpatialSmoothingRadius: pose.DefaultSpatialRadius,
		InputRotation:          geom.Identity(),
	}
}

// MobileInputRotation is the input rotation for portrait camera frames.
func MobileInputRotation() geom.Quat {
	return geom.FromEuler(0, 0, 90)
}
