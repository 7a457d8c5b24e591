package mlflow

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
)

var _ API = (*Client)(nil)

type upload struct {
	file string
	path string
}

type fakeAPI struct {
	run     *models.RunInfo
	getErr  error
	metrics [][]models.Metric
	params  []models.Parameter
	uploads []upload
}

func (f *fakeAPI) GetRun(ctx context.Context, runID string) (*models.RunInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	run := *f.run
	return &run, nil
}

func (f *fakeAPI) LogMetrics(ctx context.Context, runID string, metrics []models.Metric) error {
	f.metrics = append(f.metrics, metrics)
	return nil
}

func (f *fakeAPI) LogParams(ctx context.Context, runID string, params []models.Parameter) error {
	f.params = append(f.params, params...)
	return nil
}

func (f *fakeAPI) UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error {
	f.uploads = append(f.uploads, upload{file: filePath, path: artifactPath})
	return nil
}

func newTestBackend(t *testing.T, api *fakeAPI) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), api, "run-1", t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b
}

func runningAPI() *fakeAPI {
	return &fakeAPI{run: &models.RunInfo{RunID: "run-1", Status: string(models.RunStatusRunning)}}
}

func TestNewBackend(t *testing.T) {
	t.Run("no run id", func(t *testing.T) {
		b, err := NewBackend(context.Background(), &fakeAPI{}, "", t.TempDir(), zerolog.Nop())
		require.NoError(t, err)
		_, ok := b.ActiveRun()
		assert.False(t, ok)
		assert.Error(t, b.Log(context.Background(), models.Record{"a": 1.0}, true))
	})

	t.Run("run not running", func(t *testing.T) {
		api := &fakeAPI{run: &models.RunInfo{RunID: "run-1", Status: string(models.RunStatusFinished)}}
		_, err := NewBackend(context.Background(), api, "run-1", t.TempDir(), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("get run fails", func(t *testing.T) {
		_, err := NewBackend(context.Background(), &fakeAPI{getErr: errors.New("404")}, "run-1", t.TempDir(), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("active run", func(t *testing.T) {
		root := t.TempDir()
		b, err := NewBackend(context.Background(), runningAPI(), "run-1", root, zerolog.Nop())
		require.NoError(t, err)
		run, ok := b.ActiveRun()
		require.True(t, ok)
		assert.Equal(t, filepath.Join(root, "run-1", "files"), run.Dir)
		assert.DirExists(t, run.Dir)
	})
}

func TestLog_MetricsPerStep(t *testing.T) {
	ctx := context.Background()
	api := runningAPI()
	b := newTestBackend(t, api)
	ts := time.UnixMilli(1700000000000)

	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0, "valid_loss": 0.5}, true))
	require.NoError(t, b.Log(ctx, models.Record{"train_loss": 0.7}, false))
	require.NoError(t, b.Log(ctx, models.Record{"epoch": 1, "valid_loss": math.NaN()}, true))

	require.Len(t, api.metrics, 2)
	assert.Equal(t, []models.Metric{
		{Key: "epoch", Value: 0, Timestamp: ts, Step: 0},
		{Key: "valid_loss", Value: 0.5, Timestamp: ts, Step: 0},
	}, api.metrics[0])
	assert.Equal(t, []models.Metric{
		{Key: "epoch", Value: 1, Timestamp: ts, Step: 1},
		{Key: "train_loss", Value: 0.7, Timestamp: ts, Step: 1},
	}, api.metrics[1])
	assert.Equal(t, int64(2), b.Step())
}

func TestLog_ImagesAreUploaded(t *testing.T) {
	ctx := context.Background()
	api := runningAPI()
	b := newTestBackend(t, api)

	img, err := b.NewImage(learner.Tensor{Shape: []int{2, 2}, Data: []float32{0, 1, 1, 0}}, "Ground Truth: a\nPrediction: a")
	require.NoError(t, err)

	require.NoError(t, b.Log(ctx, models.Record{"Prediction Samples": []models.Image{img, img}}, false))
	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0}, true))

	paths := make([]string, 0, len(api.uploads))
	for _, u := range api.uploads {
		assert.FileExists(t, u.file)
		paths = append(paths, u.path)
	}
	assert.Equal(t, []string{
		"media/images/Prediction_Samples/0_0.png",
		"media/images/Prediction_Samples/0_1.png",
		"media/images/Prediction_Samples/0_captions.json",
	}, paths)
	require.Len(t, api.metrics, 1)
	assert.Len(t, api.metrics[0], 1)
}

func TestLog_UnsupportedValue(t *testing.T) {
	b := newTestBackend(t, runningAPI())
	assert.Error(t, b.Log(context.Background(), models.Record{"name": "resnet"}, true))
}

func TestWatch_LogsTopologyAndSummaries(t *testing.T) {
	ctx := context.Background()
	api := runningAPI()
	b := newTestBackend(t, api)
	model := learner.NewSoftmaxClassifier([]string{"a", "b"}, 2)

	require.NoError(t, b.Watch(ctx, model, models.GranularityAll))
	assert.Contains(t, api.params, models.Parameter{Key: "model.name", Value: "SoftmaxClassifier"})
	assert.Contains(t, api.params, models.Parameter{Key: "model.num_parameters", Value: "6"})

	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0}, true))
	keys := make([]string, 0)
	for _, m := range api.metrics[0] {
		keys = append(keys, m.Key)
	}
	assert.Contains(t, keys, "parameters/linear.weight.mean")
	assert.Contains(t, keys, "gradients/linear.bias.std")
}

func TestUploadFile(t *testing.T) {
	api := runningAPI()
	b := newTestBackend(t, api)

	require.NoError(t, b.UploadFile(context.Background(), "bestmodel.pth"))

	run, _ := b.ActiveRun()
	assert.Equal(t, []upload{{file: filepath.Join(run.Dir, "bestmodel.pth"), path: "bestmodel.pth"}}, api.uploads)
}
