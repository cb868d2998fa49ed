package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scan/pkg/common"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "uploads/", cfg.Upload.Folder)
	assert.Equal(t, 300, cfg.PDF.DPI)
	assert.Equal(t, "tesseract", cfg.OCR.Tesseract)
	assert.Equal(t, "huggingface", cfg.DocQA.Backend)
	assert.Equal(t, "impira/layoutlm-invoices", cfg.DocQA.Model)
	assert.Zero(t, cfg.Retention.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TESSERACT_PATH", "/opt/tesseract/bin/tesseract")
	t.Setenv("PDF_DPI", "150")
	t.Setenv("OCR_ENHANCE", "true")
	t.Setenv("RETENTION_TTL", "36h")
	t.Setenv("DOCQA_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/tesseract/bin/tesseract", cfg.OCR.Tesseract)
	assert.Equal(t, 150, cfg.PDF.DPI)
	assert.True(t, cfg.OCR.Enhance)
	assert.Equal(t, 36*time.Hour, cfg.Retention.TTL)
	assert.Equal(t, 60*time.Second, cfg.DocQA.Timeout)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := []byte(`
upload:
  folder: /srv/uploads
docqa:
  backend: documentai
  docai_project_id: my-project
  docai_processor_id: abc123
retention:
  ttl: 2h
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DOCAI_LOCATION", "eu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/uploads", cfg.Upload.Folder)
	assert.Equal(t, "documentai", cfg.DocQA.Backend)
	assert.Equal(t, "eu", cfg.DocQA.DocAILocation)
	assert.Equal(t, 2*time.Hour, cfg.Retention.TTL)
	assert.Equal(t, 300, cfg.PDF.DPI)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dpi", func(c *Config) { c.PDF.DPI = 0 }},
		{"unknown engine", func(c *Config) { c.OCR.Engine = "abbyy" }},
		{"azure without key", func(c *Config) { c.OCR.Engine = "azure"; c.OCR.AzureEndpoint = "https://x" }},
		{"unknown backend", func(c *Config) { c.DocQA.Backend = "donut" }},
		{"documentai without processor", func(c *Config) { c.DocQA.Backend = "documentai"; c.DocQA.DocAIProjectID = "p" }},
		{"retention without interval", func(c *Config) { c.Retention.TTL = time.Hour; c.Retention.Interval = 0 }},
		{"empty upload folder", func(c *Config) { c.Upload.Folder = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidInput))
		})
	}
}
