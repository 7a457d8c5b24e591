// Package offline is a tracking backend that keeps everything on local disk,
// for training without a tracking server. A run directory holds run.json,
// watch.json, history.jsonl and the logged media.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imishinist/mlflow-observer/internal/imaging"
	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
	"github.com/imishinist/mlflow-observer/internal/watch"
)

const (
	HistoryFile = "history.jsonl"
	RunFile     = "run.json"
	WatchFile   = "watch.json"
)

// Backend appends one JSON line per committed record to history.jsonl.
type Backend struct {
	run     *models.RunInfo
	pending models.Record
	step    int64

	model       learner.Model
	granularity models.Granularity

	log zerolog.Logger
	now func() time.Time
}

// Start creates a new run under root/<run id>/files.
func Start(root, name string, logger zerolog.Logger) (*Backend, error) {
	id := uuid.NewString()
	if name == "" {
		name = "offline-" + time.Now().Format("2006-01-02-15-04-05")
	}

	run := &models.RunInfo{
		RunID:     id,
		RunName:   name,
		Status:    string(models.RunStatusRunning),
		StartTime: time.Now(),
		Dir:       filepath.Join(root, id, "files"),
	}
	if err := os.MkdirAll(run.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	b := &Backend{run: run, pending: make(models.Record), log: logger, now: time.Now}
	if err := b.writeRun(); err != nil {
		return nil, err
	}
	logger.Info().Str("run_id", id).Str("dir", run.Dir).Msg("started offline run")
	return b, nil
}

func (b *Backend) ActiveRun() (*models.RunInfo, bool) {
	return b.run, b.run != nil && b.run.Status == string(models.RunStatusRunning)
}

// Step is the index of the next committed record.
func (b *Backend) Step() int64 { return b.step }

func (b *Backend) Watch(ctx context.Context, model learner.Model, log models.Granularity) error {
	params := make(map[string]string)
	for _, p := range watch.Topology(model, log) {
		params[p.Key] = p.Value
	}
	if err := writeJSON(filepath.Join(b.run.Dir, WatchFile), params); err != nil {
		return fmt.Errorf("failed to write model topology: %w", err)
	}
	b.model = model
	b.granularity = log
	return nil
}

func (b *Backend) NewImage(pixels learner.Tensor, caption string) (models.Image, error) {
	return imaging.NewImage(pixels, caption)
}

// mediaRef is how logged images appear in a history line.
type mediaRef struct {
	Type     string   `json:"_type"`
	Paths    []string `json:"paths"`
	Captions []string `json:"captions"`
}

func (b *Backend) Log(ctx context.Context, rec models.Record, commit bool) error {
	b.pending.Merge(rec)
	if !commit {
		return nil
	}

	pending := b.pending
	b.pending = make(models.Record)
	if b.model != nil {
		pending.Merge(watch.Summaries(b.model, b.granularity))
	}

	line := map[string]any{
		"_step":      b.step,
		"_timestamp": b.now().UnixMilli(),
	}
	for key, value := range pending {
		v, err := b.encode(key, value)
		if err != nil {
			return err
		}
		line[key] = v
	}

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to encode history line: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(b.run.Dir, HistoryFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append history: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	b.step++
	return nil
}

func (b *Backend) encode(key string, value any) (any, error) {
	switch v := value.(type) {
	case float64:
		// JSON has no NaN or infinities
		switch {
		case math.IsNaN(v):
			return "NaN", nil
		case math.IsInf(v, 1):
			return "Infinity", nil
		case math.IsInf(v, -1):
			return "-Infinity", nil
		}
		return v, nil
	case int, int64, string, bool:
		return v, nil
	case models.Image:
		return b.images(key, []models.Image{v})
	case []models.Image:
		return b.images(key, v)
	default:
		return nil, fmt.Errorf("unsupported value of type %T for %s", v, key)
	}
}

func (b *Backend) images(key string, imgs []models.Image) (mediaRef, error) {
	paths, err := imaging.WriteImages(b.run.Dir, key, b.step, imgs)
	if err != nil {
		return mediaRef{}, err
	}
	ref := mediaRef{Type: "images", Paths: paths, Captions: make([]string, 0, len(imgs))}
	for _, img := range imgs {
		ref.Captions = append(ref.Captions, img.Caption)
	}
	return ref, nil
}

// Finish marks the run as ended with status.
func (b *Backend) Finish(status models.RunStatus) error {
	end := time.Now()
	b.run.Status = string(status)
	b.run.EndTime = &end
	if err := b.writeRun(); err != nil {
		return err
	}
	b.log.Info().Str("run_id", b.run.RunID).Str("status", b.run.Status).Int64("steps", b.step).Msg("finished offline run")
	return nil
}

func (b *Backend) writeRun() error {
	if err := writeJSON(filepath.Join(b.run.Dir, RunFile), b.run); err != nil {
		return fmt.Errorf("failed to write run info: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
