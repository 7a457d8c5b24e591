package models

import "fmt"

// Granularity selects how much of a watched model is logged.
type Granularity string

const (
	GranularityNone       Granularity = "none"
	GranularityGradients  Granularity = "gradients"
	GranularityParameters Granularity = "parameters"
	GranularityAll        Granularity = "all"
)

// ParseGranularity accepts the enum values; an empty string means none.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return GranularityNone, nil
	case GranularityNone, GranularityGradients, GranularityParameters, GranularityAll:
		return g, nil
	default:
		return "", fmt.Errorf("invalid log granularity: %s (valid: none, gradients, parameters, all)", s)
	}
}

// Gradients reports whether gradient summaries are requested.
func (g Granularity) Gradients() bool {
	return g == GranularityGradients || g == GranularityAll
}

// Parameters reports whether parameter summaries are requested.
func (g Granularity) Parameters() bool {
	return g == GranularityParameters || g == GranularityAll
}
