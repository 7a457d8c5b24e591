package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrabIdx(t *testing.T) {
	// 2 x 3 tensor
	x := Tensor{Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}
	y := Tensor{Shape: []int{2}, Data: []float32{7, 8}}

	tests := []struct {
		name       string
		batch      Batch
		i          int
		batchFirst bool
		want       Batch
	}{
		{
			name:       "batch first",
			batch:      Batch{x, y},
			i:          1,
			batchFirst: true,
			want: Batch{
				{Shape: []int{3}, Data: []float32{4, 5, 6}},
				{Shape: []int{}, Data: []float32{8}},
			},
		},
		{
			name:       "batch second",
			batch:      Batch{x},
			i:          2,
			batchFirst: false,
			want: Batch{
				{Shape: []int{2}, Data: []float32{3, 6}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GrabIdx(tt.batch, tt.i, tt.batchFirst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrabIdx_Errors(t *testing.T) {
	x := Tensor{Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}

	_, err := GrabIdx(Batch{x}, 2, true)
	assert.Error(t, err)

	_, err = GrabIdx(Batch{x}, -1, true)
	assert.Error(t, err)

	_, err = GrabIdx(Batch{{Shape: []int{4}, Data: make([]float32, 4)}}, 0, false)
	assert.Error(t, err)
}

func TestIsListy(t *testing.T) {
	assert.False(t, IsListy(nil))
	assert.False(t, IsListy(Batch{{}}))
	assert.True(t, IsListy(Batch{{}, {}}))
}

func TestSplitKwargs(t *testing.T) {
	kwargs := map[string]any{"lr": 0.1, "epochs": 3, "wd": 0.01}

	picked, rest := SplitKwargs(kwargs, []string{"lr", "wd", "missing"})

	assert.Equal(t, map[string]any{"lr": 0.1, "wd": 0.01}, picked)
	assert.Equal(t, map[string]any{"epochs": 3}, rest)
	assert.True(t, HasArg([]string{"lr", "wd"}, "wd"))
	assert.False(t, HasArg([]string{"lr", "wd"}, "epochs"))
}
