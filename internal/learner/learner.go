// Package learner defines the training-session side of the observer contract:
// the model handle, the validation data, the metric recorder and the callback
// lifecycle the training loop drives.
package learner

import (
	"context"
	"io"
)

// Tensor is a dense float32 array. An empty Shape means a scalar.
type Tensor struct {
	Shape []int     `json:"shape" yaml:"shape"`
	Data  []float32 `json:"data" yaml:"data"`
}

// IsScalar reports whether t has no dimensions.
func (t Tensor) IsScalar() bool {
	return len(t.Shape) == 0
}

// Item is one labelled example.
type Item struct {
	X Tensor `json:"x" yaml:"x"`
	Y string `json:"y" yaml:"y"`
}

// Prediction is the decoded output of a single inference call.
type Prediction struct {
	Label  string
	Target Tensor
	Probs  []float32
}

// Parameter describes a named trainable tensor of a model.
type Parameter struct {
	Name      string
	Value     Tensor
	Trainable bool
}

// Model is the handle passed to the tracking backend for topology inspection.
type Model interface {
	Name() string
	Parameters() []Parameter
}

// GradientSource is implemented by models that keep the gradients of their
// last update.
type GradientSource interface {
	Gradients() []Parameter
}

// Dataset is an indexable collection with a known length.
type Dataset interface {
	Len() int
	Item(i int) (Item, error)
}

// Recorder exposes the metric names of a run. The first name is the step counter.
type Recorder interface {
	Names() []string
}

// Learner is the training session an observer is attached to.
type Learner interface {
	Model() Model
	Validation() Dataset
	Recorder() Recorder
	Predict(x Tensor) (Prediction, error)
	// Save writes the current parameters to w.
	Save(w io.Writer) error
	// Load replaces the in-memory parameters. With purge set, previously
	// saved checkpoints are discarded by the host.
	Load(r io.Reader, purge bool) error
}

// EpochEnd carries the state handed to callbacks after each epoch.
type EpochEnd struct {
	Epoch      int
	SmoothLoss float64
	// Metrics are the last validation metrics, ordered as Recorder.Names()[2:].
	Metrics []float64
}

// Callback is invoked by Fit at the training lifecycle points.
type Callback interface {
	OnTrainBegin(ctx context.Context) error
	OnEpochEnd(ctx context.Context, state EpochEnd) error
	OnTrainEnd(ctx context.Context) error
}
