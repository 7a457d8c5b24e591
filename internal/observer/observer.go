// Package observer attaches a training session to an experiment-tracking
// backend. It logs losses, metrics and sample predictions at the end of every
// epoch and keeps the best model on disk.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
)

const (
	// BestModelFile is the name of the checkpoint written under the run directory.
	BestModelFile = "bestmodel.pth"

	// PredictionSamplesKey is the record field holding the sample images.
	PredictionSamplesKey = "Prediction Samples"
)

// DataType selects what kind of prediction samples are logged.
type DataType string

const (
	DataTypeImages DataType = "images"
	DataTypeNone   DataType = "none"
)

var validate = validator.New()

// Backend is the experiment-tracking side of the observer.
type Backend interface {
	// ActiveRun returns the current run, if one has been started.
	ActiveRun() (*models.RunInfo, bool)
	// Watch registers the model for topology and, depending on log,
	// gradient or parameter logging.
	Watch(ctx context.Context, model learner.Model, log models.Granularity) error
	// Log queues rec; with commit the queued fields are written as one step.
	Log(ctx context.Context, rec models.Record, commit bool) error
	// NewImage encodes pixel data as a captioned image.
	NewImage(pixels learner.Tensor, caption string) (models.Image, error)
}

// Config is captured when the observer is created and never changes.
type Config struct {
	Monitor     string             `validate:"required"`
	Mode        Mode               `validate:"omitempty,oneof=auto min max"`
	SaveModel   bool
	DataType    DataType           `validate:"omitempty,oneof=images none"`
	Predictions int                `validate:"gte=0"`
	Log         models.Granularity `validate:"omitempty,oneof=none gradients parameters all"`

	// Samples, when non-empty, replaces the random validation subset.
	Samples []learner.Item `validate:"-"`
}

// DefaultConfig mirrors the defaults of the command line.
func DefaultConfig() Config {
	return Config{
		Monitor:     "valid_loss",
		Mode:        ModeAuto,
		DataType:    DataTypeImages,
		Predictions: 32,
		Log:         models.GranularityNone,
	}
}

// Option customises an Observer.
type Option func(*Observer)

// WithWatchFlag shares flag between observers instead of DefaultWatchFlag.
func WithWatchFlag(flag *WatchFlag) Option {
	return func(o *Observer) { o.watch = flag }
}

// WithLogger sets the logger notices are written to.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Observer) { o.log = logger }
}

// WithRand sets the source used to draw the sample set.
func WithRand(rng *rand.Rand) Option {
	return func(o *Observer) { o.rng = rng }
}

// WithStats records observer activity in s.
func WithStats(s *Stats) Option {
	return func(o *Observer) { o.stats = s }
}

// Observer is a learner.Callback that forwards training state to a Backend.
type Observer struct {
	learn     learner.Learner
	backend   Backend
	cfg       Config
	tracker   *BestMetricTracker
	modelPath string
	samples   []learner.Item
	indices   []int

	watch *WatchFlag
	log   zerolog.Logger
	rng   *rand.Rand
	stats *Stats
}

var _ learner.Callback = (*Observer)(nil)

// New attaches an observer to learn. It fails with a PreconditionError when
// backend has no active run.
func New(learn learner.Learner, backend Backend, cfg Config, opts ...Option) (*Observer, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid observer config: %w", err)
	}

	run, ok := backend.ActiveRun()
	if !ok || run == nil {
		return nil, ErrNoActiveRun
	}

	mode, err := ResolveMode(cfg.Mode, cfg.Monitor)
	if err != nil {
		return nil, err
	}

	o := &Observer{
		learn:     learn,
		backend:   backend,
		cfg:       cfg,
		tracker:   NewBestMetricTracker(mode),
		modelPath: filepath.Join(run.Dir, BestModelFile),
		samples:   cfg.Samples,
		watch:     DefaultWatchFlag,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if cfg.DataType != DataTypeNone && cfg.DataType != "" && len(o.samples) == 0 {
		o.samples, o.indices, err = drawSamples(learn.Validation(), cfg.Predictions, o.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to select prediction samples: %w", err)
		}
	}

	return o, nil
}

// ModelPath is where the best model is written.
func (o *Observer) ModelPath() string { return o.modelPath }

// Best returns the best monitored value seen since training began.
func (o *Observer) Best() float64 { return o.tracker.Best() }

// Mode returns the resolved comparison mode.
func (o *Observer) Mode() Mode { return o.tracker.Mode() }

// Samples returns the fixed prediction sample set.
func (o *Observer) Samples() []learner.Item { return o.samples }

// SampleIndices returns the validation indices of a randomly drawn sample
// set, or nil when the samples were given explicitly.
func (o *Observer) SampleIndices() []int { return o.indices }

// OnTrainBegin resets the best value and asks the backend to watch the model
// once per WatchFlag.
func (o *Observer) OnTrainBegin(ctx context.Context) error {
	o.tracker.Reset()

	if !o.watch.TrySet() {
		return nil
	}
	if err := o.backend.Watch(ctx, o.learn.Model(), o.cfg.Log); err != nil {
		return fmt.Errorf("failed to watch model: %w", err)
	}
	return nil
}

// OnEpochEnd saves a better model, logs prediction samples and then commits
// the losses and metrics of the epoch.
func (o *Observer) OnEpochEnd(ctx context.Context, state learner.EpochEnd) error {
	o.stats.epoch()
	logs := o.epochRecord(state)

	if o.cfg.SaveModel {
		if err := o.saveIfBetter(state.Epoch, logs); err != nil {
			return err
		}
	}

	var logged int
	if len(o.samples) > 0 {
		images, err := o.predictionImages()
		if err != nil {
			return err
		}
		if err := o.backend.Log(ctx, models.Record{PredictionSamplesKey: images}, false); err != nil {
			return fmt.Errorf("failed to log prediction samples: %w", err)
		}
		logged = len(images)
	}

	if err := o.backend.Log(ctx, logs, true); err != nil {
		return fmt.Errorf("failed to log metrics: %w", err)
	}
	o.stats.logged(logged)
	return nil
}

// OnTrainEnd loads the best saved model back into the learner, if any.
func (o *Observer) OnTrainEnd(ctx context.Context) error {
	if !o.cfg.SaveModel {
		return nil
	}

	info, err := os.Stat(o.modelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", o.modelPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(o.modelPath)
	if err != nil {
		return fmt.Errorf("failed to open best model: %w", err)
	}
	defer f.Close()

	if err := o.learn.Load(f, false); err != nil {
		return fmt.Errorf("failed to load best model from %s: %w", o.modelPath, err)
	}
	o.log.Info().Str("path", o.modelPath).Msgf("Loaded best saved model from %s", o.modelPath)
	return nil
}

// epochRecord pairs the recorder names with [epoch, smooth loss, metrics...]
// and drops the first pair, which is the epoch counter.
func (o *Observer) epochRecord(state learner.EpochEnd) models.Record {
	values := append([]float64{float64(state.Epoch), state.SmoothLoss}, state.Metrics...)
	names := o.learn.Recorder().Names()

	rec := make(models.Record)
	for i := 1; i < len(names) && i < len(values); i++ {
		rec[names[i]] = values[i]
	}
	return rec
}

func (o *Observer) saveIfBetter(epoch int, logs models.Record) error {
	v, ok := logs[o.cfg.Monitor].(float64)
	if !ok || math.IsNaN(v) {
		o.log.Debug().Int("epoch", epoch).Str("monitor", o.cfg.Monitor).Msg("monitored metric not available")
		return nil
	}
	if !o.tracker.Improved(v) {
		return nil
	}

	o.log.Info().
		Int("epoch", epoch).
		Str("monitor", o.cfg.Monitor).
		Float64("value", v).
		Msgf("Better model found at epoch %d with %s value: %v.", epoch, o.cfg.Monitor, v)

	if err := o.writeModel(); err != nil {
		return err
	}
	o.stats.saved(v)
	return nil
}

func (o *Observer) writeModel() error {
	f, err := os.Create(o.modelPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", o.modelPath, err)
	}
	if err := o.learn.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save best model to %s: %w", o.modelPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.modelPath, err)
	}
	return nil
}

// predictionImages runs inference on the sample set. Only scalar targets,
// i.e. single categories, become images.
func (o *Observer) predictionImages() ([]models.Image, error) {
	images := make([]models.Image, 0, len(o.samples))
	for i, it := range o.samples {
		pred, err := o.learn.Predict(it.X)
		if err != nil {
			return nil, fmt.Errorf("failed to predict sample %d: %w", i, err)
		}
		if !pred.Target.IsScalar() {
			continue
		}

		caption := fmt.Sprintf("Ground Truth: %s\nPrediction: %s", it.Y, pred.Label)
		img, err := o.backend.NewImage(it.X, caption)
		if err != nil {
			return nil, fmt.Errorf("failed to build image for sample %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}
