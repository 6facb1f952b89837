package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ssargent/freyjawire/pkg/api"
	"github.com/ssargent/freyjawire/pkg/config"
	"github.com/ssargent/freyjawire/pkg/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	config api.ServerConfig
	deps   api.Deps
}

func (r *recordingStarter) StartServer(ctx context.Context, deps api.Deps, config api.ServerConfig) error {
	r.deps = deps
	r.config = config
	return nil
}

type recordingFactory struct {
	starter *recordingStarter
}

func (f *recordingFactory) CreateServerStarter() api.ServerStarter {
	return f.starter
}

// resetFlags puts every flag back to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setup writes a config into a temp dir and installs a fresh container.
func setup(t *testing.T) (configPath, dataDir string) {
	t.Helper()
	SetContainer(di.NewContainer())

	tmpDir := t.TempDir()
	configPath = filepath.Join(tmpDir, "freyjawire.yaml")
	dataDir = filepath.Join(tmpDir, "data")

	_, err := run(t, "init", "--config", configPath, "--data-dir", dataDir)
	require.NoError(t, err)
	return configPath, dataDir
}

func TestInitCommand(t *testing.T) {
	SetContainer(di.NewContainer())
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "freyjawire.yaml")
	dataDir := filepath.Join(tmpDir, "data")

	t.Run("writes config", func(t *testing.T) {
		out, err := run(t, "init", "--config", configPath, "--data-dir", dataDir, "--print-keys")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration written to "+configPath)
		assert.Contains(t, out, "container records (versions=true)")
		assert.Contains(t, out, "API key: ")

		cfg, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.NotEmpty(t, cfg.Security.APIKey)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		_, err := run(t, "init", "--config", configPath, "--data-dir", dataDir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites", func(t *testing.T) {
		before, err := config.LoadConfig(configPath)
		require.NoError(t, err)

		_, err = run(t, "init", "--config", configPath, "--data-dir", dataDir, "--force")
		require.NoError(t, err)

		after, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.NotEqual(t, before.Security.APIKey, after.Security.APIKey)
	})
}

func TestPutGetDelete(t *testing.T) {
	configPath, _ := setup(t)

	out, err := run(t, "put", "records", "greeting", "hi", "--config", configPath, "--version", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored 2 bytes at records/greeting")

	out, err = run(t, "get", "records", "greeting", "--config", configPath, "--meta")
	require.NoError(t, err)
	assert.Contains(t, out, "kind=value version=3 size=2 path=fast")
	assert.True(t, strings.HasSuffix(out, "hi\n"))

	_, err = run(t, "put", "records", "greeting", "again", "--config", configPath, "--version", "4", "--no-overwrite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEYEXIST")

	out, err = run(t, "delete", "records", "greeting", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted records/greeting")

	_, err = run(t, "get", "records", "greeting", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTFOUND")
}

func TestPutVersionRules(t *testing.T) {
	configPath, _ := setup(t)

	_, err := run(t, "put", "records", "k", "v", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires --version")

	_, err = run(t, "put", "missing", "k", "v", "--config", configPath, "--version", "1")
	require.Error(t, err)
}

func TestGetCompressedAndLarge(t *testing.T) {
	configPath, _ := setup(t)

	large := strings.Repeat("freyja ", 12000)
	_, err := run(t, "put", "blobs", "doc", large, "--config", configPath, "--version", "1.5")
	require.NoError(t, err)

	out, err := run(t, "get", "blobs", "doc", "--config", configPath, "--meta")
	require.NoError(t, err)
	assert.Contains(t, out, "version=1.5")
	assert.Contains(t, out, large)

	_, err = run(t, "put", "records", "doc", large, "--config", configPath, "--version", "2")
	require.NoError(t, err)

	out, err = run(t, "get", "records", "doc", "--config", configPath, "--meta")
	require.NoError(t, err)
	assert.Contains(t, out, "path=alloc")
	assert.Contains(t, out, large)
}

func TestGetEncodings(t *testing.T) {
	configPath, _ := setup(t)

	_, err := run(t, "put", "records", "name", "héllo", "--config", configPath, "--version", "1", "--utf16")
	require.NoError(t, err)

	out, err := run(t, "get", "records", "name", "--config", configPath, "--encoding", "utf16", "--meta")
	require.NoError(t, err)
	assert.Contains(t, out, "size=12")
	assert.True(t, strings.HasSuffix(out, "héllo\n"))

	_, err = run(t, "get", "records", "name", "--config", configPath, "--encoding", "ebcdic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestContainersCommand(t *testing.T) {
	configPath, _ := setup(t)

	out, err := run(t, "containers", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "records")
	assert.Contains(t, out, "compression=none")
	assert.Contains(t, out, "blobs")
	assert.Contains(t, out, "compression=zstd")
}

func TestServeCommand(t *testing.T) {
	configPath, _ := setup(t)

	starter := &recordingStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&recordingFactory{starter: starter})
	SetContainer(c)

	out, err := run(t, "serve", "--config", configPath, "--in-memory", "--port", "9311", "--bind", "0.0.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Starting FreyjaWire server on 0.0.0.0:9311")

	assert.Equal(t, 9311, starter.config.Port)
	assert.Equal(t, "0.0.0.0", starter.config.Bind)
	assert.NotEmpty(t, starter.config.APIKey)
	assert.NotNil(t, starter.deps.Pipeline)
	assert.Len(t, starter.deps.Containers, 2)
}

func TestMissingConfigFallsBackToDefaults(t *testing.T) {
	SetContainer(di.NewContainer())
	tmpDir := t.TempDir()

	out, err := run(t, "containers",
		"--config", filepath.Join(tmpDir, "absent.yaml"),
		"--data-dir", filepath.Join(tmpDir, "data"))
	require.NoError(t, err)
	assert.Contains(t, out, "records")
	assert.DirExists(t, filepath.Join(tmpDir, "data"))
}
