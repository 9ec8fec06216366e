package detect

import "presenca/internal/vision"

// Minimum crop dimensions in pixels. Smaller candidates embed poorly and
// are discarded before they reach the recognition stage.
const (
	MinFaceWidth  = 60
	MinFaceHeight = 60
)

// KeepCandidate applies the conservative candidate filter: the box must be
// at least 60x60 and both eye landmarks must be present. Dropping a face
// with a missing landmark trades recall for recognition quality downstream.
func KeepCandidate(d vision.Detection) bool {
	if d.Box.W < MinFaceWidth || d.Box.H < MinFaceHeight {
		return false
	}
	if d.LeftEye == nil || d.RightEye == nil {
		return false
	}
	return true
}
