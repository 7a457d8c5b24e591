// Package watch describes a watched model for the tracking backends: its
// topology once, and parameter or gradient summaries on every step.
package watch

import (
	"fmt"
	"math"

	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
)

// Topology lists the model name, the total number of values and the shape
// of every parameter.
func Topology(model learner.Model, g models.Granularity) []models.Parameter {
	params := model.Parameters()
	total := 0
	out := []models.Parameter{
		{Key: "model.name", Value: model.Name()},
		{Key: "model.watch", Value: string(g)},
	}
	for _, p := range params {
		total += len(p.Value.Data)
		out = append(out, models.Parameter{
			Key:   "model.shape." + p.Name,
			Value: fmt.Sprint(p.Value.Shape),
		})
	}
	out = append(out, models.Parameter{Key: "model.num_parameters", Value: fmt.Sprint(total)})
	return out
}

// Summaries returns mean and std of each parameter and/or gradient tensor,
// as selected by g. Gradients are only available from a
// learner.GradientSource.
func Summaries(model learner.Model, g models.Granularity) models.Record {
	rec := make(models.Record)
	if model == nil {
		return rec
	}
	if g.Parameters() {
		for _, p := range model.Parameters() {
			addStats(rec, "parameters/"+p.Name, p.Value.Data)
		}
	}
	if src, ok := model.(learner.GradientSource); ok && g.Gradients() {
		for _, p := range src.Gradients() {
			addStats(rec, "gradients/"+p.Name, p.Value.Data)
		}
	}
	return rec
}

func addStats(rec models.Record, prefix string, data []float32) {
	if len(data) == 0 {
		return
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	mean := sum / float64(len(data))

	var sq float64
	for _, v := range data {
		d := float64(v) - mean
		sq += d * d
	}
	rec[prefix+".mean"] = mean
	rec[prefix+".std"] = math.Sqrt(sq / float64(len(data)))
}
