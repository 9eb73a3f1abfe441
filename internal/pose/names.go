package pose

import "strings"

// Joint names recognized by the retargeting core.
const (
	Nose          = "central nose"
	LeftShoulder  = "left shoulder"
	RightShoulder = "right shoulder"
	LeftElbow     = "left elbow"
	RightElbow    = "right elbow"
	LeftWrist     = "left wrist"
	RightWrist    = "right wrist"
	LeftHip       = "left hip"
	RightHip      = "right hip"
	LeftKnee      = "left knee"
	RightKnee     = "right knee"
	LeftAnkle     = "left ankle"
	RightAnkle    = "right ankle"
)

const (
	leftPrefix  = "left "
	rightPrefix = "right "
)

// JointArrayOrder is the joint order of a flat x,y,z position array.
var JointArrayOrder = []string{
	Nose,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// Mirror swaps the left/right prefix of a joint name.
// Names without a side are returned unchanged.
func Mirror(name string) string {
	switch {
	case strings.HasPrefix(name, leftPrefix):
		return rightPrefix + strings.TrimPrefix(name, leftPrefix)
	case strings.HasPrefix(name, rightPrefix):
		return leftPrefix + strings.TrimPrefix(name, rightPrefix)
	default:
		return name
	}
}
