package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/logflow/perfkit/pkg/errors"
)

func testManager(search []string, environ map[string]string) *Manager {
	if environ == nil {
		environ = map[string]string{}
	}
	return &Manager{config: Default(), search: search, environ: environ}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 14831, cfg.Analysis.EntityCount)
	assert.Equal(t, []int{1, 2}, cfg.Analysis.AutocorrelationLags)
	assert.Equal(t, int64(1000), cfg.Analysis.GapThreshold)
}

func TestLoad_Priority(t *testing.T) {
	dir := t.TempDir()
	user := writeFile(t, dir, "user.yaml", "analysis:\n  top_k: 3\n  window: 20\n")
	project := writeFile(t, dir, "project.yaml", "analysis:\n  window: 30\n  skip_malformed: true\n")
	explicit := writeFile(t, dir, "explicit.yaml", "analysis:\n  bucket_width: 25\n")

	m := testManager(
		[]string{filepath.Join(dir, "missing.yaml"), user, project},
		map[string]string{"PERFKIT_BUCKET_WIDTH": "50", "PERFKIT_AUTOCORRELATION_LAGS": "1,3,5"},
	)
	require.NoError(t, m.Load(explicit))

	cfg := m.Get()
	assert.Equal(t, 3, cfg.Analysis.TopK)
	assert.Equal(t, 30, cfg.Analysis.Window)
	assert.True(t, cfg.Analysis.SkipMalformed)
	assert.Equal(t, int64(50), cfg.Analysis.BucketWidth)
	assert.Equal(t, []int{1, 3, 5}, cfg.Analysis.AutocorrelationLags)
	assert.Equal(t, 100, cfg.Analysis.MaxBufferCapacity)
	assert.Equal(t, []string{user, project, explicit}, m.GetPaths())
}

func TestLoad_NestedEnv(t *testing.T) {
	m := testManager([]string{}, map[string]string{
		"PERFKIT_S3_ENDPOINT":       "http://localhost:9000",
		"PERFKIT_S3_USE_PATH_STYLE": "true",
		"PERFKIT_LOG_LEVEL":         "debug",
	})
	require.NoError(t, m.Load(""))

	cfg := m.Get()
	assert.Equal(t, "http://localhost:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	err := testManager([]string{}, nil).Load(filepath.Join(dir, "nope.yaml"))
	assert.ErrorIs(t, err, perrors.ErrSourceUnavailable)

	unknown := writeFile(t, dir, "unknown.yaml", "analysis:\n  top_kk: 3\n")
	err = testManager([]string{unknown}, nil).Load("")
	assert.ErrorIs(t, err, perrors.ErrInvalidFormat)

	err = testManager([]string{}, map[string]string{"PERFKIT_TOP_K": "many"}).Load("")
	assert.ErrorIs(t, err, perrors.ErrInvalidArgument)
}

func TestLoad_EmptyFile(t *testing.T) {
	empty := writeFile(t, t.TempDir(), "empty.yaml", "")
	m := testManager([]string{empty}, nil)
	require.NoError(t, m.Load(""))
	assert.Equal(t, Default(), m.Get())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative entity count", func(c *Config) { c.Analysis.EntityCount = -1 }},
		{"zero capacity", func(c *Config) { c.Analysis.MaxBufferCapacity = 0 }},
		{"zero what-if", func(c *Config) { c.Analysis.WhatIfCapacity = 0 }},
		{"zero bucket", func(c *Config) { c.Analysis.BucketWidth = 0 }},
		{"negative gap", func(c *Config) { c.Analysis.GapThreshold = -5 }},
		{"zero lag", func(c *Config) { c.Analysis.AutocorrelationLags = []int{1, 0} }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), perrors.ErrInvalidArgument)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m := testManager([]string{}, nil)
	require.NoError(t, m.Load(""))
	m.Get().Analysis.TopK = 7
	require.NoError(t, m.Save(path))

	reloaded := testManager([]string{path}, nil)
	require.NoError(t, reloaded.Load(""))
	assert.Equal(t, 7, reloaded.Get().Analysis.TopK)
}
