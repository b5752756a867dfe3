package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm        string
	Tesseract       string
	Lang            string
	DPI             int
	MaxPages        int
	TessdataDir     string
	NativeThreshold int
	EnhancePages    bool
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxTextChars int
	Lenient      bool
}

type PipelineConfig struct {
	Concurrency int
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"concurrency": "pipeline.concurrency",
	"model":       "llm.model",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"enhance":     "ocr.enhance_pages",
	"max-pages":   "ocr.max_pages",
}

// LoadConfig reads TAXLEXIA_* environment variables over defaults. When
// flags is non-nil, any of the known flags that were set take precedence.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAXLEXIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.lang", "eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.native_threshold", 100)
	v.SetDefault("ocr.enhance_pages", false)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_text_chars", 5000)
	v.SetDefault("llm.lenient", true)

	v.SetDefault("pipeline.concurrency", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// the conventional OpenAI variable is honoured when ours is unset
	if err := v.BindEnv("llm.api_key", "TAXLEXIA_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("ocr.tessdata_dir", "TAXLEXIA_OCR_TESSDATA_DIR", "TESSDATA_PREFIX"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	return &Config{
		OCR: OCRConfig{
			Pdftoppm:        v.GetString("ocr.pdftoppm"),
			Tesseract:       v.GetString("ocr.tesseract"),
			Lang:            v.GetString("ocr.lang"),
			DPI:             v.GetInt("ocr.dpi"),
			MaxPages:        v.GetInt("ocr.max_pages"),
			TessdataDir:     v.GetString("ocr.tessdata_dir"),
			NativeThreshold: v.GetInt("ocr.native_threshold"),
			EnhancePages:    v.GetBool("ocr.enhance_pages"),
		},
		LLM: LLMConfig{
			APIKey:       v.GetString("llm.api_key"),
			BaseURL:      v.GetString("llm.base_url"),
			Model:        v.GetString("llm.model"),
			Timeout:      v.GetDuration("llm.timeout"),
			MaxTextChars: v.GetInt("llm.max_text_chars"),
			Lenient:      v.GetBool("llm.lenient"),
		},
		Pipeline: PipelineConfig{
			Concurrency: v.GetInt("pipeline.concurrency"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

// Validate checks the settings needed to analyze invoices.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "TAXLEXIA_LLM_API_KEY or OPENAI_API_KEY is required", ErrConfig)
	}
	if c.Pipeline.Concurrency < 1 {
		return NewAppError("CONFIG_ERROR", "pipeline concurrency must be at least 1", ErrConfig)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "ocr dpi must be positive", ErrConfig)
	}
	return nil
}
