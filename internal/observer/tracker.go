package observer

import (
	"fmt"
	"math"
	"strings"
)

// Mode is the direction in which the monitored metric improves.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeMin  Mode = "min"
	ModeMax  Mode = "max"
)

// ResolveMode turns auto into min or max. Auto picks min when the monitor
// name contains "loss" or "error". This is a substring heuristic: a name such
// as "loss_ratio_max" resolves to min.
func ResolveMode(mode Mode, monitor string) (Mode, error) {
	switch mode {
	case ModeMin, ModeMax:
		return mode, nil
	case ModeAuto, "":
		if strings.Contains(monitor, "loss") || strings.Contains(monitor, "error") {
			return ModeMin, nil
		}
		return ModeMax, nil
	default:
		return "", fmt.Errorf("invalid mode: %s (valid: auto, min, max)", mode)
	}
}

// BestMetricTracker holds the best monitored value seen so far.
type BestMetricTracker struct {
	mode Mode
	best float64
}

// NewBestMetricTracker returns a reset tracker for a resolved mode.
func NewBestMetricTracker(mode Mode) *BestMetricTracker {
	t := &BestMetricTracker{mode: mode}
	t.Reset()
	return t
}

// Reset sets best to +Inf in min mode and -Inf in max mode.
func (t *BestMetricTracker) Reset() {
	if t.mode == ModeMin {
		t.best = math.Inf(1)
	} else {
		t.best = math.Inf(-1)
	}
}

func (t *BestMetricTracker) Mode() Mode { return t.mode }

func (t *BestMetricTracker) Best() float64 { return t.best }

// Better reports whether v strictly improves on the current best.
func (t *BestMetricTracker) Better(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if t.mode == ModeMin {
		return v < t.best
	}
	return v > t.best
}

// Improved records v as the new best if it is strictly better.
func (t *BestMetricTracker) Improved(v float64) bool {
	if !t.Better(v) {
		return false
	}
	t.best = v
	return true
}
