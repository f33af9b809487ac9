package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitializeConfigDefaults(t *testing.T) {
	cfg, err := InitializeConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "2006-01-02", cfg.DateLayout)
	assert.Equal(t, "first_match", cfg.Rules.Mode)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "classified.csv", cfg.Output.File)
	assert.Empty(t, cfg.Sources)
}

func TestInitializeConfigFull(t *testing.T) {
	cfg, err := InitializeConfig(writeConfig(t, `
log:
  level: debug
  format: json
date_layout: "%m/%d/%Y"
rules_file: merchants.rules
views_file: reports.views
captures_file: captures.yaml
rules:
  mode: all_tags
workers: 4
output:
  file: out.csv
data_sources:
  - name: checking
    file: data/checking.csv
    format: "{date},{description},{amount}"
    has_header: true
  - name: card
    file: data/card/*.csv
    format: "{date:%m/%d/%Y},{_},{description},{-amount}"
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "%m/%d/%Y", cfg.DateLayout)
	assert.Equal(t, "merchants.rules", cfg.RulesFile)
	assert.Equal(t, "all_tags", cfg.Rules.Mode)
	assert.Equal(t, 4, cfg.Workers)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "checking", cfg.Sources[0].Name)
	assert.True(t, cfg.Sources[0].HasHeader)
	assert.Equal(t, "data/card/*.csv", cfg.Sources[1].File)
	assert.False(t, cfg.Sources[1].HasHeader)
}

func TestInitializeConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "log:\n  level: shouting\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"bad rules mode", "rules:\n  mode: best_match\n"},
		{"negative workers", "workers: -1\n"},
		{"source missing name", "data_sources:\n  - file: a.csv\n    format: \"{amount}\"\n"},
		{"source missing file", "data_sources:\n  - name: a\n    format: \"{amount}\"\n"},
		{"source missing format", "data_sources:\n  - name: a\n    file: a.csv\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitializeConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestInitializeConfigMostSpecificMode(t *testing.T) {
	cfg, err := InitializeConfig(writeConfig(t, "rules:\n  mode: most_specific\n"))
	require.NoError(t, err)
	assert.Equal(t, "most_specific", cfg.Rules.Mode)
}

func TestInitializeConfigMissingFileUsesDefaults(t *testing.T) {
	// Point the search away from any real settings.yaml.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := InitializeConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestNewLogger(t *testing.T) {
	cfg, err := InitializeConfig(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.NewLogger())
}
