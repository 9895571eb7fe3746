package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"cepsilver/enrichment"
)

var (
	validLogLevels    = []string{"DEBUG", "INFO", "WARN", "ERROR"}
	validLogFormats   = []string{"text", "json"}
	validCompressions = []string{"snappy", "gzip", "zstd", "none", "uncompressed"}
)

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errors []string

	// Валидация директорий
	if c.InputDir == "" {
		errors = append(errors, "input dir is required")
	}
	if c.OutputDir == "" {
		errors = append(errors, "output dir is required")
	}
	if c.UsersFileName == "" {
		errors = append(errors, "users file name is required")
	}

	if c.ProgressEvery < 1 {
		errors = append(errors, "progress interval must be at least 1")
	}
	if !slices.Contains(validCompressions, strings.ToLower(c.ParquetCompression)) {
		errors = append(errors, fmt.Sprintf("invalid parquet compression: %s (valid: %s)",
			c.ParquetCompression, strings.Join(validCompressions, ", ")))
	}

	// Валидация логирования
	if c.LogLevel != "" && !slices.Contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (valid: %s)",
			c.LogFormat, strings.Join(validLogFormats, ", ")))
	}

	if c.ViaCEP == nil {
		errors = append(errors, "viacep config is required")
	} else if err := ValidateViaCEP(c.ViaCEP); err != nil {
		errors = append(errors, fmt.Sprintf("viacep config: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateViaCEP проверяет конфигурацию клиента ViaCEP
func ValidateViaCEP(ec *enrichment.EnricherConfig) error {
	var errors []string

	u, err := url.Parse(ec.BaseURL)
	if ec.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base url: %q", ec.BaseURL))
	}
	if ec.Timeout < 100*time.Millisecond {
		errors = append(errors, "timeout must be at least 100ms")
	}
	if ec.RequestDelay <= 0 {
		errors = append(errors, "request delay must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// GetDefaults возвращает конфигурацию по умолчанию
func GetDefaults() *Config {
	return &Config{
		InputDir:           "01-bronze-raw",
		OutputDir:          "02-silver-validated",
		UsersFileName:      "users.csv",
		ProgressEvery:      50,
		ParquetCompression: "snappy",
		LogLevel:           "INFO",
		LogFormat:          "text",
		ViaCEP: &enrichment.EnricherConfig{
			BaseURL:      enrichment.DefaultViaCEPBaseURL,
			Timeout:      enrichment.DefaultTimeout,
			RequestDelay: enrichment.DefaultRequestDelay,
		},
		Cache: &enrichment.CacheConfig{Enabled: true},
	}
}
