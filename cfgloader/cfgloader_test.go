package cfgloader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/fileupload/cfgloader"
)

type storageConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=local minio" default:"local"`
	Dir       string `yaml:"dir" validate:"required"`
	SecretKey string `yaml:"secret_key" mask:"true"`
}

type testConfig struct {
	Name    string        `yaml:"name" validate:"required"`
	Port    int           `yaml:"port" default:"8080"`
	Storage storageConfig `yaml:"storage"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "/srv/files")

	path := writeConfig(t, `
name: uploads
storage:
  dir: ${UPLOAD_DIR}
  secret_key: hunter2
`)

	cfg, err := cfgloader.Load[testConfig](path, cfgloader.WithSilent())
	require.NoError(t, err)

	assert.Equal(t, "uploads", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "/srv/files", cfg.Storage.Dir)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := cfgloader.Load[testConfig](filepath.Join(t.TempDir(), "nope.yaml"), cfgloader.WithSilent())
		require.Error(t, err)
		assert.True(t, errx.IsCodeIn(err, cfgloader.CodeReadFailed))
	})

	t.Run("broken yaml", func(t *testing.T) {
		path := writeConfig(t, "name: [")
		_, err := cfgloader.Load[testConfig](path, cfgloader.WithSilent())
		require.Error(t, err)
		assert.True(t, errx.IsCodeIn(err, cfgloader.CodeInvalidConfig))
	})

	t.Run("validation", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  driver: ftp\n")
		_, err := cfgloader.Load[testConfig](path, cfgloader.WithSilent())
		require.Error(t, err)
		assert.True(t, errx.IsCodeIn(err, cfgloader.CodeInvalidConfig))
		assert.Contains(t, err.Error(), "testConfig.Name: required")
	})

	t.Run("pointer type", func(t *testing.T) {
		_, err := cfgloader.Load[*testConfig]("unused.yaml", cfgloader.WithSilent())
		require.Error(t, err)
	})
}

func TestMaskedYAML(t *testing.T) {
	out, err := cfgloader.MaskedYAML(testConfig{
		Name:    "uploads",
		Storage: storageConfig{Driver: "minio", Dir: "files", SecretKey: "hunter2"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "*******")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "dir: files")
}
