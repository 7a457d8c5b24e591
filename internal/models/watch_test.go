package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in         string
		want       Granularity
		gradients  bool
		parameters bool
	}{
		{in: "", want: GranularityNone},
		{in: "none", want: GranularityNone},
		{in: "gradients", want: GranularityGradients, gradients: true},
		{in: "parameters", want: GranularityParameters, parameters: true},
		{in: "all", want: GranularityAll, gradients: true, parameters: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := ParseGranularity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
			assert.Equal(t, tt.gradients, g.Gradients())
			assert.Equal(t, tt.parameters, g.Parameters())
		})
	}

	_, err := ParseGranularity("weights")
	assert.Error(t, err)
}

func TestRecord(t *testing.T) {
	r := Record{"b": 1.0, "a": 2.0}
	r.Merge(Record{"a": 3.0, "c": 4.0})

	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	assert.Equal(t, 3.0, r["a"])
}
