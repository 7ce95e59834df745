package config

import (
	"os"
	"strconv"
)

type Config struct {
	Environment string
	DatabaseURL string

	// Blob storage: "file" keeps blobs on the local filesystem under
	// StorageDir, "s3" targets an S3-compatible bucket.
	StorageBackend string
	StorageDir     string
	S3Region       string
	S3Bucket       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	// Watermark style override; empty means built-in defaults.
	WatermarkStyleFile string

	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "dev"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", "file"),
		StorageDir:     getEnv("STORAGE_DIR", "./data/blobs"),
		S3Region:       getEnv("S3_REGION", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),

		WatermarkStyleFile: getEnv("WATERMARK_STYLE_FILE", ""),

		LogDir:      getEnv("LOG_DIR", "./logs"),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
