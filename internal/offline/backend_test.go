package offline

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/models"
)

func startRun(t *testing.T) *Backend {
	t.Helper()
	b, err := Start(t.TempDir(), "test", zerolog.Nop())
	require.NoError(t, err)
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b
}

func readHistory(t *testing.T, b *Backend) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(b.run.Dir, HistoryFile))
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestStart(t *testing.T) {
	b := startRun(t)

	run, ok := b.ActiveRun()
	require.True(t, ok)
	assert.Equal(t, "test", run.RunName)
	assert.DirExists(t, run.Dir)
	assert.FileExists(t, filepath.Join(run.Dir, RunFile))
}

func TestLog_BuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	b := startRun(t)

	require.NoError(t, b.Log(ctx, models.Record{"extra": 1}, false))
	assert.NoFileExists(t, filepath.Join(b.run.Dir, HistoryFile))
	assert.Equal(t, int64(0), b.Step())

	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0, "valid_loss": 0.5}, true))
	require.NoError(t, b.Log(ctx, models.Record{"epoch": 1, "valid_loss": math.NaN()}, true))

	lines := readHistory(t, b)
	require.Len(t, lines, 2)
	assert.Equal(t, map[string]any{
		"_step":      0.0,
		"_timestamp": 1700000000000.0,
		"extra":      1.0,
		"epoch":      0.0,
		"valid_loss": 0.5,
	}, lines[0])
	assert.Equal(t, 1.0, lines[1]["_step"])
	assert.Equal(t, "NaN", lines[1]["valid_loss"])
	assert.NotContains(t, lines[1], "extra")
	assert.Equal(t, int64(2), b.Step())
}

func TestLog_Images(t *testing.T) {
	ctx := context.Background()
	b := startRun(t)

	img, err := b.NewImage(learner.Tensor{Shape: []int{2, 2}, Data: []float32{0, 1, 1, 0}}, "Ground Truth: a\nPrediction: b")
	require.NoError(t, err)

	require.NoError(t, b.Log(ctx, models.Record{"Prediction Samples": []models.Image{img}}, false))
	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0}, true))

	lines := readHistory(t, b)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{
		"_type":    "images",
		"paths":    []any{"media/images/Prediction_Samples/0_0.png"},
		"captions": []any{"Ground Truth: a\nPrediction: b"},
	}, lines[0]["Prediction Samples"])
	assert.FileExists(t, filepath.Join(b.run.Dir, "media", "images", "Prediction_Samples", "0_0.png"))
}

func TestLog_UnsupportedValue(t *testing.T) {
	b := startRun(t)
	err := b.Log(context.Background(), models.Record{"bad": []float64{1}}, true)
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	b := startRun(t)
	model := learner.NewSoftmaxClassifier([]string{"a", "b"}, 3)

	require.NoError(t, b.Watch(ctx, model, models.GranularityParameters))

	data, err := os.ReadFile(filepath.Join(b.run.Dir, WatchFile))
	require.NoError(t, err)
	var topology map[string]string
	require.NoError(t, json.Unmarshal(data, &topology))
	assert.Equal(t, "SoftmaxClassifier", topology["model.name"])
	assert.Equal(t, "8", topology["model.num_parameters"])

	require.NoError(t, b.Log(ctx, models.Record{"epoch": 0}, true))
	lines := readHistory(t, b)
	require.Len(t, lines, 1)
	assert.Equal(t, 0.0, lines[0]["parameters/linear.weight.mean"])
	assert.NotContains(t, lines[0], "gradients/linear.weight.mean")
}

func TestFinish(t *testing.T) {
	b := startRun(t)

	require.NoError(t, b.Finish(models.RunStatusFailed))

	_, ok := b.ActiveRun()
	assert.False(t, ok)

	data, err := os.ReadFile(filepath.Join(b.run.Dir, RunFile))
	require.NoError(t, err)
	var run models.RunInfo
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, string(models.RunStatusFailed), run.Status)
	assert.NotNil(t, run.EndTime)
}
