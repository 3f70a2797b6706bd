package curium_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	curium "github.com/susautw/curium-go"
)

func TestLoadNodeConfig_AppliesDefaultsForZeroFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_num_workers: 7\n"), 0o644))

	cfg, err := curium.LoadNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.DefaultNumWorkers)
	assert.Equal(t, 10*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.DefaultResponseTimeout)
}

func TestLoadNodeConfig_MissingFile(t *testing.T) {
	_, err := curium.LoadNodeConfig("/nonexistent/path.yaml")
	assert.Error(t, err)
}
