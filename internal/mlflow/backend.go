package mlflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/imishinist/mlflow-observer/internal/imaging"
	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
	"github.com/imishinist/mlflow-observer/internal/watch"
)

// API is the subset of Client used by Backend.
type API interface {
	GetRun(ctx context.Context, runID string) (*models.RunInfo, error)
	LogMetrics(ctx context.Context, runID string, metrics []models.Metric) error
	LogParams(ctx context.Context, runID string, params []models.Parameter) error
	UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error
}

// Backend logs observer records to an existing MLflow run. Each committed
// record becomes one MLflow step; images are uploaded as run artifacts.
type Backend struct {
	api     API
	run     *models.RunInfo
	pending models.Record
	step    int64

	model       learner.Model
	granularity models.Granularity

	log zerolog.Logger
	now func() time.Time
}

// NewBackend attaches to runID. An empty runID yields a backend without an
// active run. Local copies of logged files go to <runDir>/<runID>/files.
func NewBackend(ctx context.Context, api API, runID, runDir string, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{
		api:     api,
		pending: make(models.Record),
		log:     logger,
		now:     time.Now,
	}
	if runID == "" {
		return b, nil
	}

	run, err := api.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if run.Status != "" && run.Status != string(models.RunStatusRunning) {
		return nil, fmt.Errorf("run %s is not active (status: %s)", runID, run.Status)
	}

	run.Dir = filepath.Join(runDir, runID, "files")
	if err := os.MkdirAll(run.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	b.run = run
	return b, nil
}

func (b *Backend) ActiveRun() (*models.RunInfo, bool) {
	return b.run, b.run != nil
}

// Step is the index of the next committed record.
func (b *Backend) Step() int64 { return b.step }

// Watch logs the model topology as run parameters and remembers the model
// for per-step summaries.
func (b *Backend) Watch(ctx context.Context, model learner.Model, log models.Granularity) error {
	if b.run == nil {
		return fmt.Errorf("no active run")
	}
	if err := b.api.LogParams(ctx, b.run.RunID, watch.Topology(model, log)); err != nil {
		return fmt.Errorf("failed to log model topology: %w", err)
	}
	b.model = model
	b.granularity = log
	return nil
}

func (b *Backend) NewImage(pixels learner.Tensor, caption string) (models.Image, error) {
	return imaging.NewImage(pixels, caption)
}

func (b *Backend) Log(ctx context.Context, rec models.Record, commit bool) error {
	if b.run == nil {
		return fmt.Errorf("no active run")
	}
	b.pending.Merge(rec)
	if !commit {
		return nil
	}

	pending := b.pending
	b.pending = make(models.Record)
	if b.model != nil {
		pending.Merge(watch.Summaries(b.model, b.granularity))
	}

	ts := b.now()
	var metrics []models.Metric
	for _, key := range pending.Keys() {
		switch v := pending[key].(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				b.log.Debug().Str("key", key).Float64("value", v).Msg("skipping non-finite metric")
				continue
			}
			metrics = append(metrics, models.Metric{Key: key, Value: v, Timestamp: ts, Step: b.step})
		case int:
			metrics = append(metrics, models.Metric{Key: key, Value: float64(v), Timestamp: ts, Step: b.step})
		case models.Image:
			if err := b.uploadImages(ctx, key, []models.Image{v}); err != nil {
				return err
			}
		case []models.Image:
			if err := b.uploadImages(ctx, key, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported value of type %T for %s", v, key)
		}
	}

	if err := b.api.LogMetrics(ctx, b.run.RunID, metrics); err != nil {
		return err
	}
	b.step++
	return nil
}

type captionFile struct {
	Step     int64    `json:"step"`
	Paths    []string `json:"paths"`
	Captions []string `json:"captions"`
}

func (b *Backend) uploadImages(ctx context.Context, key string, imgs []models.Image) error {
	if len(imgs) == 0 {
		return nil
	}

	paths, err := imaging.WriteImages(b.run.Dir, key, b.step, imgs)
	if err != nil {
		return err
	}

	captions := captionFile{Step: b.step, Paths: paths}
	for _, img := range imgs {
		captions.Captions = append(captions.Captions, img.Caption)
	}
	data, err := json.MarshalIndent(captions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode captions: %w", err)
	}
	captionPath := path.Join(imaging.MediaDir, imaging.SafeKey(key), fmt.Sprintf("%d_captions.json", b.step))
	if err := os.WriteFile(filepath.Join(b.run.Dir, filepath.FromSlash(captionPath)), data, 0644); err != nil {
		return fmt.Errorf("failed to write captions: %w", err)
	}

	for _, p := range append(paths, captionPath) {
		if err := b.api.UploadArtifact(ctx, b.run.RunID, filepath.Join(b.run.Dir, filepath.FromSlash(p)), p); err != nil {
			return fmt.Errorf("failed to upload %s: %w", p, err)
		}
	}
	return nil
}

// UploadFile uploads a file from the run directory, keeping its relative path.
func (b *Backend) UploadFile(ctx context.Context, name string) error {
	if b.run == nil {
		return fmt.Errorf("no active run")
	}
	return b.api.UploadArtifact(ctx, b.run.RunID, filepath.Join(b.run.Dir, name), filepath.ToSlash(name))
}
