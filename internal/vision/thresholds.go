package vision

import "fmt"

// cosineThresholds maps embedding model names to their documented cosine
// operating points. A distance strictly below the threshold counts as a
// same-person hit.
var cosineThresholds = map[string]float64{
	"VGG-Face":     0.68,
	"Facenet":      0.40,
	"Facenet512":   0.30,
	"OpenFace":     0.10,
	"DeepFace":     0.23,
	"DeepID":       0.015,
	"Dlib":         0.07,
	"ArcFace":      0.68,
	"SFace":        0.593,
	"GhostFaceNet": 0.65,
}

// ThresholdFor returns the cosine threshold for model. Unknown models are a
// configuration error and fail at startup rather than defaulting silently.
func ThresholdFor(model string) (float64, error) {
	t, ok := cosineThresholds[model]
	if !ok {
		return 0, fmt.Errorf("no cosine threshold known for model %q", model)
	}
	return t, nil
}
