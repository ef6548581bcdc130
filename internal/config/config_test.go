package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PATENTFLOW_BACKEND", "")
	t.Setenv("PATENT_RUNTIME_BACKEND", "")
	t.Setenv("PATENTFLOW_MAX_STAGE_RETRIES", "")
	t.Setenv("PATENTFLOW_DESCRIPTION_PARALLELISM", "")
	t.Setenv("PATENT_DESCRIPTION_PARALLELISM", "")

	cfg := Load()
	require.Equal(t, "anthropic", cfg.Backend)
	require.Equal(t, 3, cfg.MaxStageRetries)
	require.Equal(t, 2, cfg.DescriptionParallelism)
	require.Equal(t, 10000, cfg.DescriptionMinChars)
	require.Equal(t, "", cfg.PostgresURL)
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	t.Setenv("PATENTFLOW_MAX_STAGE_RETRIES", "0")
	t.Setenv("PATENTFLOW_DESCRIPTION_PARALLELISM", "42")
	t.Setenv("PATENTFLOW_BACKEND", " OpenAI ")

	cfg := Load()
	require.Equal(t, 1, cfg.MaxStageRetries)
	require.Equal(t, DescriptionParallelismMax, cfg.DescriptionParallelism)
	require.Equal(t, "openai", cfg.Backend)
}

func TestLegacyBackendVariable(t *testing.T) {
	t.Setenv("PATENTFLOW_BACKEND", "")
	t.Setenv("PATENT_RUNTIME_BACKEND", "openai")
	require.Equal(t, "openai", Load().Backend)
}

func TestLoadFileOverlaysYAML(t *testing.T) {
	t.Setenv("PATENTFLOW_MAX_STAGE_RETRIES", "5")
	dir := t.TempDir()
	path := filepath.Join(dir, "patentflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: mock\ndescription_parallelism: 0\ntask_prompt: focus on claims\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "mock", cfg.Backend)
	require.Equal(t, 5, cfg.MaxStageRetries)
	require.Equal(t, DescriptionParallelismMin, cfg.DescriptionParallelism)
	require.Equal(t, "focus on claims", cfg.TaskPrompt)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
