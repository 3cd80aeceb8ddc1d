package buddyscript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
dry-run: true
enable-file-ops: true
timeout-ms: 2500
workdir: /tmp/scripts
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.DryRun)
	assert.True(t, *cfg.DryRun)
	require.NotNil(t, cfg.TimeoutMs)
	assert.Equal(t, 2500, *cfg.TimeoutMs)
	assert.Nil(t, cfg.EnableBash, "unset fields stay nil")

	opts := cfg.Apply(Options{})
	assert.True(t, opts.DryRun)
	assert.True(t, opts.EnableFileOps)
	assert.False(t, opts.EnableBash)
	assert.Equal(t, 2500, opts.TimeoutMs)
	assert.Equal(t, "/tmp/scripts", opts.Workdir)

	// An already-set workdir is not overridden by the file.
	opts = cfg.Apply(Options{Workdir: "/elsewhere"})
	assert.Equal(t, "/elsewhere", opts.Workdir)
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	path := filepath.Join(root, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\n"), 0o644))

	assert.Equal(t, path, FindConfig(nested))
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("dry-run: [not a bool\n"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}
