package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"invoice-scan/pkg/common"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upload    UploadConfig    `yaml:"upload"`
	PDF       PDFConfig       `yaml:"pdf"`
	OCR       OCRConfig       `yaml:"ocr"`
	DocQA     DocQAConfig     `yaml:"docqa"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type UploadConfig struct {
	Folder string `yaml:"folder"`
}

type PDFConfig struct {
	Pdftoppm string `yaml:"pdftoppm"`
	DPI      int    `yaml:"dpi"`
}

// OCRConfig configures the fallback text extractor.
type OCRConfig struct {
	Engine        string `yaml:"engine"` // tesseract | azure
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	PSM           int    `yaml:"psm"`
	Enhance       bool   `yaml:"enhance"`
	AzureEndpoint string `yaml:"azure_endpoint"`
	AzureKey      string `yaml:"azure_key"`
}

// DocQAConfig configures the document question answering model.
type DocQAConfig struct {
	Backend   string        `yaml:"backend"` // huggingface | documentai | none
	Model     string        `yaml:"model"`
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	HealthURL string        `yaml:"health_url"`
	Timeout   time.Duration `yaml:"timeout"`
	TopK      int           `yaml:"top_k"`

	DocAIProjectID       string `yaml:"docai_project_id"`
	DocAILocation        string `yaml:"docai_location"`
	DocAIProcessorID     string `yaml:"docai_processor_id"`
	DocAICredentialsFile string `yaml:"docai_credentials_file"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RetentionConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "release",
			ShutdownTimeout: 30 * time.Second,
		},
		Upload: UploadConfig{Folder: "uploads/"},
		PDF:    PDFConfig{Pdftoppm: "pdftoppm", DPI: 300},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Tesseract:     "tesseract",
			TesseractLang: "eng",
		},
		DocQA: DocQAConfig{
			Backend:       "huggingface",
			Model:         "impira/layoutlm-invoices",
			Timeout:       60 * time.Second,
			TopK:          1,
			DocAILocation: "us",
		},
		Cache:     CacheConfig{TTL: 24 * time.Hour},
		Retention: RetentionConfig{Interval: 10 * time.Minute},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads defaults, then CONFIG_FILE (YAML), then .env, then the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}

	// .env is optional; variables already in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Upload.Folder = getEnv("UPLOAD_FOLDER", c.Upload.Folder)

	c.PDF.Pdftoppm = getEnv("PDFTOPPM_PATH", c.PDF.Pdftoppm)
	c.PDF.DPI = getEnvAsInt("PDF_DPI", c.PDF.DPI)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Tesseract = getEnv("TESSERACT_PATH", c.OCR.Tesseract)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.Enhance = getEnvAsBool("OCR_ENHANCE", c.OCR.Enhance)
	c.OCR.AzureEndpoint = getEnv("AZURE_CV_ENDPOINT", c.OCR.AzureEndpoint)
	c.OCR.AzureKey = getEnv("AZURE_CV_KEY", c.OCR.AzureKey)

	c.DocQA.Backend = getEnv("DOCQA_BACKEND", c.DocQA.Backend)
	c.DocQA.Model = getEnv("DOCQA_MODEL", c.DocQA.Model)
	c.DocQA.Endpoint = getEnv("DOCQA_ENDPOINT", c.DocQA.Endpoint)
	c.DocQA.Token = getEnv("DOCQA_TOKEN", c.DocQA.Token)
	c.DocQA.HealthURL = getEnv("DOCQA_HEALTH_URL", c.DocQA.HealthURL)
	c.DocQA.Timeout = getEnvAsDuration("DOCQA_TIMEOUT", c.DocQA.Timeout)
	c.DocQA.TopK = getEnvAsInt("DOCQA_TOP_K", c.DocQA.TopK)
	c.DocQA.DocAIProjectID = getEnv("DOCAI_PROJECT_ID", c.DocQA.DocAIProjectID)
	c.DocQA.DocAILocation = getEnv("DOCAI_LOCATION", c.DocQA.DocAILocation)
	c.DocQA.DocAIProcessorID = getEnv("DOCAI_PROCESSOR_ID", c.DocQA.DocAIProcessorID)
	c.DocQA.DocAICredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.DocQA.DocAICredentialsFile)

	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvAsInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Retention.TTL = getEnvAsDuration("RETENTION_TTL", c.Retention.TTL)
	c.Retention.Interval = getEnvAsDuration("RETENTION_INTERVAL", c.Retention.Interval)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Upload.Folder == "" {
		return common.NewAppError(common.CodeConfig, "UPLOAD_FOLDER is required", common.ErrInvalidInput)
	}
	if c.PDF.DPI <= 0 {
		return common.NewAppError(common.CodeConfig, "PDF_DPI must be positive", common.ErrInvalidInput)
	}

	switch strings.ToLower(c.OCR.Engine) {
	case "tesseract":
		if c.OCR.Tesseract == "" {
			return common.NewAppError(common.CodeConfig, "TESSERACT_PATH is required", common.ErrInvalidInput)
		}
	case "azure":
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			return common.NewAppError(common.CodeConfig, "AZURE_CV_ENDPOINT and AZURE_CV_KEY are required for the azure engine", common.ErrInvalidInput)
		}
	default:
		return common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine), common.ErrInvalidInput)
	}

	switch strings.ToLower(c.DocQA.Backend) {
	case "huggingface", "none":
	case "documentai":
		if c.DocQA.DocAIProjectID == "" || c.DocQA.DocAIProcessorID == "" || c.DocQA.DocAILocation == "" {
			return common.NewAppError(common.CodeConfig, "DOCAI_PROJECT_ID, DOCAI_LOCATION and DOCAI_PROCESSOR_ID are required for the documentai backend", common.ErrInvalidInput)
		}
	default:
		return common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown DOCQA_BACKEND %q", c.DocQA.Backend), common.ErrInvalidInput)
	}

	if c.Retention.TTL > 0 && c.Retention.Interval <= 0 {
		return common.NewAppError(common.CodeConfig, "RETENTION_INTERVAL must be positive when RETENTION_TTL is set", common.ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
