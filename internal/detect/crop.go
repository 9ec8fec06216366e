package detect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"presenca/internal/vision"
)

// ErrEmptyCrop reports a candidate whose box, clamped to the frame, has no
// area left.
var ErrEmptyCrop = errors.New("empty crop")

// DecodeFrame parses the PNG frame bytes fetched from the object store.
func DecodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// CropFace extracts the candidate box from the frame and re-encodes it as
// PNG. The box is clamped to the frame bounds first.
func CropFace(img image.Image, box vision.Box) ([]byte, error) {
	bounds := img.Bounds()
	rect := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Intersect(bounds)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
