package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	SQLitePath            string
	Store                 string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	LockBackend           string
	LockTTLSeconds        int
	AuthSecret            string
	AccessTokenTTLMinutes int
	StorageProvider       string
	UploadDir             string
	GCSBucket             string
	GCSCredentialsFile    string
	MaxImageBytes         int64
	WatermarkText         string
	PhoneRegion           string
	LogLevel              string
	LogFormat             string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxImage, err := strconv.ParseInt(getEnv("MAX_IMAGE_BYTES", "2097152"), 10, 64)
	if err != nil || maxImage < 1 {
		maxImage = 2 << 20
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "*"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            getEnv("SQLITE_PATH", "app.db"),
		Store:                 strings.ToLower(strings.TrimSpace(os.Getenv("STORE"))),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: positiveInt("REPORT_CACHE_TTL_SECONDS", 60),
		LockBackend:           strings.ToLower(getEnv("LOCK_BACKEND", "local")),
		LockTTLSeconds:        positiveInt("LOCK_TTL_SECONDS", 10),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		StorageProvider:       strings.ToLower(getEnv("STORAGE_PROVIDER", "local")),
		UploadDir:             getEnv("UPLOAD_DIR", "static/uploads"),
		GCSBucket:             os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile:    os.Getenv("GCS_CREDENTIALS_FILE"),
		MaxImageBytes:         maxImage,
		WatermarkText:         getEnv("WATERMARK_TEXT", "Product Image"),
		PhoneRegion:           strings.ToUpper(getEnv("PHONE_REGION", "US")),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
