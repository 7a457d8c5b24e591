package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/mlflow-observer/internal/learner"
)

func TestToImage_Layouts(t *testing.T) {
	tests := []struct {
		name   string
		tensor learner.Tensor
		width  int
		height int
		gray   bool
	}{
		{
			name:   "height width",
			tensor: learner.Tensor{Shape: []int{2, 3}, Data: make([]float32, 6)},
			width:  3,
			height: 2,
			gray:   true,
		},
		{
			name:   "single channel",
			tensor: learner.Tensor{Shape: []int{1, 2, 2}, Data: make([]float32, 4)},
			width:  2,
			height: 2,
			gray:   true,
		},
		{
			name:   "rgb",
			tensor: learner.Tensor{Shape: []int{3, 2, 4}, Data: make([]float32, 24)},
			width:  4,
			height: 2,
			gray:   false,
		},
		{
			name:   "flat square",
			tensor: learner.Tensor{Data: make([]float32, 9)},
			width:  3,
			height: 3,
			gray:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ToImage(tt.tensor)
			require.NoError(t, err)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
			_, isGray := img.(*image.Gray)
			assert.Equal(t, tt.gray, isGray)
		})
	}
}

func TestToImage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tensor learner.Tensor
	}{
		{name: "flat not square", tensor: learner.Tensor{Data: make([]float32, 5)}},
		{name: "empty", tensor: learner.Tensor{}},
		{name: "two channels", tensor: learner.Tensor{Shape: []int{2, 2, 2}, Data: make([]float32, 8)}},
		{name: "rank four", tensor: learner.Tensor{Shape: []int{1, 1, 2, 2}, Data: make([]float32, 4)}},
		{name: "data mismatch", tensor: learner.Tensor{Shape: []int{2, 2}, Data: make([]float32, 3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToImage(tt.tensor)
			assert.Error(t, err)
		})
	}
}

func TestToImage_Scaling(t *testing.T) {
	unit, err := ToImage(learner.Tensor{Shape: []int{1, 2}, Data: []float32{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 0}, unit.At(0, 0))
	assert.Equal(t, color.Gray{Y: 255}, unit.At(1, 0))

	bytesRange, err := ToImage(learner.Tensor{Shape: []int{1, 2}, Data: []float32{1, 300}})
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 1}, bytesRange.At(0, 0))
	assert.Equal(t, color.Gray{Y: 255}, bytesRange.At(1, 0))
}

func TestNewImage(t *testing.T) {
	img, err := NewImage(learner.Tensor{Shape: []int{2, 2}, Data: []float32{0, 0.5, 0.5, 1}}, "Ground Truth: 3\nPrediction: 3")
	require.NoError(t, err)

	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, "Ground Truth: 3\nPrediction: 3", img.Caption)

	decoded, err := png.Decode(bytes.NewReader(img.PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
}
