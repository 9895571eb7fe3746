package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cepsilver/enrichment"
	"cepsilver/normalization"
)

// Config конфигурация нормализации bronze -> silver
type Config struct {
	// Директории
	InputDir      string `json:"input_dir"`
	OutputDir     string `json:"output_dir"`
	UsersFileName string `json:"users_file_name"`

	// Нормализация
	ProgressEvery      int    `json:"progress_every"`
	ParquetCompression string `json:"parquet_compression"`

	// Логирование
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// История запусков и отчет; пустой путь отключает
	RunHistoryDBPath string `json:"run_history_db_path"`
	RunReportPath    string `json:"run_report_path"`

	// Обогащение CEP
	ViaCEP *enrichment.EnricherConfig `json:"viacep"`
	Cache  *enrichment.CacheConfig    `json:"cache"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		InputDir:      getEnv("BRONZE_INPUT_DIR", "01-bronze-raw"),
		OutputDir:     getEnv("SILVER_OUTPUT_DIR", "02-silver-validated"),
		UsersFileName: getEnv("USERS_FILE_NAME", normalization.DefaultUsersFileName),

		ProgressEvery:      getEnvInt("CEP_PROGRESS_EVERY", normalization.DefaultProgressEvery),
		ParquetCompression: getEnv("PARQUET_COMPRESSION", "snappy"),

		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RunHistoryDBPath: os.Getenv("RUN_HISTORY_DB_PATH"),
		RunReportPath:    os.Getenv("RUN_REPORT_PATH"),

		ViaCEP: LoadViaCEPConfig(),
		Cache: &enrichment.CacheConfig{
			Enabled: getEnvBool("VIACEP_CACHE_ENABLED", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadViaCEPConfig загружает конфигурацию клиента ViaCEP
func LoadViaCEPConfig() *enrichment.EnricherConfig {
	return &enrichment.EnricherConfig{
		BaseURL:      getEnv("VIACEP_BASE_URL", enrichment.DefaultViaCEPBaseURL),
		Timeout:      getEnvDuration("VIACEP_TIMEOUT", enrichment.DefaultTimeout),
		RequestDelay: getEnvDuration("VIACEP_REQUEST_DELAY", enrichment.DefaultRequestDelay),
		UserAgent:    os.Getenv("VIACEP_USER_AGENT"),
	}
}

// NormalizerConfig настройки нормализатора
func (c *Config) NormalizerConfig() normalization.Config {
	return normalization.Config{
		UsersFileName: c.UsersFileName,
		CEPColumn:     normalization.DefaultCEPColumn,
		ProgressEvery: c.ProgressEvery,
	}
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool получает переменную окружения как bool или возвращает значение по умолчанию
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
