package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `mapstructure:"name"`
	Progress struct {
		Driver string `mapstructure:"driver"`
		Topic  string `mapstructure:"topic"`
	} `mapstructure:"progress"`
	BatchSize int `mapstructure:"batch_size"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "cfgtest.yaml"), []byte(body), 0644))
	return dir
}

func TestLoad_FileDefaultsAndEnv(t *testing.T) {
	dir := writeConfig(t, "name: recorder\nprogress:\n  driver: nats\n")
	t.Chdir(dir)
	t.Setenv("CFGTEST_BATCH_SIZE", "4")

	var out sample
	v, err := Load("cfgtest", &out, map[string]interface{}{
		"progress.topic": "recorder.progress",
		"batch_size":     10,
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "recorder", out.Name)
	assert.Equal(t, "nats", out.Progress.Driver)
	assert.Equal(t, "recorder.progress", out.Progress.Topic, "未配置的 key 走默认值")
	assert.Equal(t, 4, out.BatchSize, "环境变量覆盖默认值")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	var out sample
	_, err := Load("does-not-exist", &out, nil)
	assert.Error(t, err)
}
