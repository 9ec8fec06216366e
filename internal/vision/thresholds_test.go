package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdFor(t *testing.T) {
	got, err := ThresholdFor("Facenet512")
	require.NoError(t, err)
	assert.Equal(t, 0.30, got)

	got, err = ThresholdFor("ArcFace")
	require.NoError(t, err)
	assert.Equal(t, 0.68, got)
}

func TestThresholdForUnknownModel(t *testing.T) {
	_, err := ThresholdFor("NotAModel")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NotAModel")
}
