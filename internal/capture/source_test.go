package capture

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestReadPNGSplitsConcatenatedStream(t *testing.T) {
	first := encodeTestPNG(t, color.RGBA{R: 255, A: 255})
	second := encodeTestPNG(t, color.RGBA{B: 255, A: 255})

	stream := append(append([]byte(nil), first...), second...)
	r := bufio.NewReader(bytes.NewReader(stream))

	got, err := readPNG(r)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = readPNG(r)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = readPNG(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadPNGFramesStayDecodable(t *testing.T) {
	frame := encodeTestPNG(t, color.Gray{Y: 128})
	r := bufio.NewReader(bytes.NewReader(frame))

	got, err := readPNG(r)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestReadPNGRejectsBadSignature(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("not a png stream at all")))
	_, err := readPNG(r)
	assert.Error(t, err)
}

func TestReadPNGTruncatedChunkIsAnError(t *testing.T) {
	frame := encodeTestPNG(t, color.Gray{Y: 10})
	r := bufio.NewReader(bytes.NewReader(frame[:len(frame)-6]))
	_, err := readPNG(r)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
