package logger

import (
	"io"
	"os"
	"strconv"
)

// Environments recognised by the file-output rules.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config holds logger settings. LoadFromEnv fills it from LOG_* variables.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json or text
	Output      io.Writer // overrides every other output setting
	ServiceName string
	Environment string // local, dev, prod

	LogFile     string
	LogFileOnly bool

	// Rotation, passed to lumberjack.
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv reads the logger configuration from the environment.
func LoadFromEnv() *Config {
	return &Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: getEnv("SERVICE_NAME", "neonmeme"),
		Environment: getEnv("APP_ENV", EnvLocal),

		LogFile:     getEnv("LOG_FILE", "/var/log/neonmeme/app.log"),
		LogFileOnly: getEnvBool("LOG_FILE_ONLY", false),

		MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		Compress:   getEnvBool("LOG_COMPRESS", true),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}
