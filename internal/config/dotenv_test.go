package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchUpwardsForFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.observer"), []byte("X=1\n"), 0644))

	found, err := SearchUpwardsForFile(nested, ".env.observer")
	require.NoError(t, err)

	want, err := filepath.Abs(filepath.Join(root, ".env.observer"))
	require.NoError(t, err)
	assert.Equal(t, want, found)

	_, err = SearchUpwardsForFile(nested, ".env.does-not-exist-anywhere")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("MLFLOW_OBSERVER_TEST_VAR=from-file\n"), 0644))
	chdir(t, dir)
	t.Setenv("MLFLOW_OBSERVER_TEST_VAR", "")
	os.Unsetenv("MLFLOW_OBSERVER_TEST_VAR")

	require.NoError(t, LoadDotEnv(".env.test"))
	assert.Equal(t, "from-file", os.Getenv("MLFLOW_OBSERVER_TEST_VAR"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	assert.NoError(t, LoadDotEnv(".env.does-not-exist-anywhere"))
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
