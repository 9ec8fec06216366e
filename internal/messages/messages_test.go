package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	body := []byte(`{
		"object_key": "24-08-2026/1756000000000.png",
		"frame_uuid": "f-1",
		"tag_video": "aula-01",
		"data_captura_frame": "24-08-2026",
		"inicio_processamento": 1756000000.1,
		"tempo_captura_frame": 0.25,
		"timestamp": 1756000000.4,
		"fps": 20,
		"duracao": 60,
		"fim_captura": 1756000000.4,
		"unknown_field": "ignored"
	}`)

	m, err := DecodeFrame(body)
	require.NoError(t, err)
	assert.Equal(t, "f-1", m.FrameUUID)
	assert.Equal(t, "aula-01", m.TagVideo)
	assert.Equal(t, 20.0, m.FPS)
}

func TestDecodeFrameMalformedIsPoison(t *testing.T) {
	_, err := DecodeFrame([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrPoison)
}

func TestDecodeFrameMissingFieldsArePoison(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no object_key", `{"frame_uuid":"f","tag_video":"t"}`},
		{"no frame_uuid", `{"object_key":"k","tag_video":"t"}`},
		{"no tag_video", `{"object_key":"k","frame_uuid":"f"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tc.body))
			assert.ErrorIs(t, err, ErrPoison)
		})
	}
}

func TestDecodeDetectionRequiresFaceCount(t *testing.T) {
	_, err := DecodeDetection([]byte(`{
		"object_key":"k","frame_uuid":"f","tag_video":"t","frame_total_faces":0
	}`))
	assert.ErrorIs(t, err, ErrPoison)

	m, err := DecodeDetection([]byte(`{
		"object_key":"k","frame_uuid":"f","tag_video":"t","frame_total_faces":2
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2, m.FrameTotalFaces)
}

func TestDecodeRecognition(t *testing.T) {
	m, err := DecodeRecognition([]byte(`{
		"object_key":"k","frame_uuid":"f","tag_video":"t","frame_total_faces":1,
		"uuid":"p-1","reconhecimento_path":"p-1/face_x.png","tags":["p-1"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "p-1", m.UUID)
	assert.Equal(t, []string{"p-1"}, m.Tags)

	_, err = DecodeRecognition([]byte(`{
		"object_key":"k","frame_uuid":"f","tag_video":"t","frame_total_faces":1,
		"reconhecimento_path":"p-1/face_x.png"
	}`))
	assert.ErrorIs(t, err, ErrPoison)
}
