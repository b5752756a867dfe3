package common

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TAXLEXIA_LLM_API_KEY", "")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "eng", cfg.OCR.Lang)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 100, cfg.OCR.NativeThreshold)
	assert.False(t, cfg.OCR.EnhancePages)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5000, cfg.LLM.MaxTextChars)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Equal(t, "CONFIG_ERROR", CodeOf(err))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("TAXLEXIA_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("TAXLEXIA_OCR_DPI", "200")
	t.Setenv("TAXLEXIA_PIPELINE_CONCURRENCY", "4")
	t.Setenv("TAXLEXIA_LLM_TIMEOUT", "5s")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 200, cfg.OCR.DPI)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_PrefixedKeyWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("TAXLEXIA_LLM_API_KEY", "sk-own")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-own", cfg.LLM.APIKey)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("TAXLEXIA_PIPELINE_CONCURRENCY", "2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("concurrency", 1, "")
	fs.Bool("enhance", false, "")
	require.NoError(t, fs.Parse([]string{"--concurrency=8", "--enhance"}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.OCR.EnhancePages)
}

func TestValidate_Ranges(t *testing.T) {
	base := Config{
		LLM:      LLMConfig{APIKey: "k"},
		Pipeline: PipelineConfig{Concurrency: 1},
		OCR:      OCRConfig{DPI: 300},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Pipeline.Concurrency = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.OCR.DPI = 0
	assert.Error(t, bad.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("pipeline.file.done", "file", "a.pdf")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"pipeline.file.done"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
