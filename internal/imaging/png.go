// Package imaging turns pixel tensors into PNG images for the tracking
// backends.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
)

// NewImage encodes pixels as a PNG with the given caption.
func NewImage(pixels learner.Tensor, caption string) (models.Image, error) {
	img, err := ToImage(pixels)
	if err != nil {
		return models.Image{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return models.Image{}, fmt.Errorf("failed to encode png: %w", err)
	}

	b := img.Bounds()
	return models.Image{
		PNG:     buf.Bytes(),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Caption: caption,
	}, nil
}

// ToImage accepts [H W], [1 H W], [3 H W] (channels first) or a flat vector
// whose length is a perfect square. Values in [0, 1] are scaled to 0..255;
// if any value is above 1 the data is taken to be in 0..255 already.
func ToImage(t learner.Tensor) (image.Image, error) {
	channels, h, w, err := layout(t)
	if err != nil {
		return nil, err
	}
	if len(t.Data) != channels*h*w {
		return nil, fmt.Errorf("tensor has %d values, shape needs %d", len(t.Data), channels*h*w)
	}

	scale := float32(255)
	for _, v := range t.Data {
		if v > 1 {
			scale = 1
			break
		}
	}
	px := func(c, y, x int) uint8 {
		v := t.Data[c*h*w+y*w+x] * scale
		return uint8(math.Max(0, math.Min(255, math.Round(float64(v)))))
	}

	rect := image.Rect(0, 0, w, h)
	if channels == 1 {
		img := image.NewGray(rect)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray(x, y, color.Gray{Y: px(0, y, x)})
			}
		}
		return img, nil
	}

	img := image.NewNRGBA(rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: px(0, y, x), G: px(1, y, x), B: px(2, y, x), A: 255})
		}
	}
	return img, nil
}

func layout(t learner.Tensor) (channels, h, w int, err error) {
	switch len(t.Shape) {
	case 0, 1:
		side := int(math.Sqrt(float64(len(t.Data))))
		if side == 0 || side*side != len(t.Data) {
			return 0, 0, 0, fmt.Errorf("cannot infer image size from %d values", len(t.Data))
		}
		return 1, side, side, nil
	case 2:
		return 1, t.Shape[0], t.Shape[1], nil
	case 3:
		if t.Shape[0] != 1 && t.Shape[0] != 3 {
			return 0, 0, 0, fmt.Errorf("unsupported channel count %d", t.Shape[0])
		}
		return t.Shape[0], t.Shape[1], t.Shape[2], nil
	default:
		return 0, 0, 0, fmt.Errorf("unsupported image rank %d", len(t.Shape))
	}
}
