package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presenca/internal/vision"
)

func testFramePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	img, err := DecodeFrame(testFramePNG(t, 20, 10))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	_, err = DecodeFrame([]byte("not an image"))
	assert.Error(t, err)
}

func TestCropFaceExtractsBox(t *testing.T) {
	img, err := DecodeFrame(testFramePNG(t, 100, 100))
	require.NoError(t, err)

	crop, err := CropFace(img, vision.Box{X: 10, Y: 20, W: 60, H: 70})
	require.NoError(t, err)

	got, err := png.Decode(bytes.NewReader(crop))
	require.NoError(t, err)
	assert.Equal(t, 60, got.Bounds().Dx())
	assert.Equal(t, 70, got.Bounds().Dy())
}

func TestCropFaceClampsToFrame(t *testing.T) {
	img, err := DecodeFrame(testFramePNG(t, 50, 50))
	require.NoError(t, err)

	crop, err := CropFace(img, vision.Box{X: 40, Y: 40, W: 30, H: 30})
	require.NoError(t, err)

	got, err := png.Decode(bytes.NewReader(crop))
	require.NoError(t, err)
	assert.Equal(t, 10, got.Bounds().Dx())
	assert.Equal(t, 10, got.Bounds().Dy())
}

func TestCropFaceOutsideFrameIsEmpty(t *testing.T) {
	img, err := DecodeFrame(testFramePNG(t, 50, 50))
	require.NoError(t, err)

	_, err = CropFace(img, vision.Box{X: 200, Y: 200, W: 30, H: 30})
	assert.ErrorIs(t, err, ErrEmptyCrop)
}
