package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	PayGatewayURL         string
	PayGatewayAppID       string
	PayGatewayKey         string
	AutoPrint             bool
	AutoOpenDrawer        bool
	LargeChangeThreshold  float64
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	threshold, err := strconv.ParseFloat(getEnv("LARGE_CHANGE_THRESHOLD", "100"), 64)
	if err != nil || threshold <= 0 {
		threshold = 100
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		PayGatewayURL:         strings.TrimSpace(os.Getenv("PAY_GATEWAY_URL")),
		PayGatewayAppID:       strings.TrimSpace(os.Getenv("PAY_GATEWAY_APP_ID")),
		PayGatewayKey:         strings.TrimSpace(os.Getenv("PAY_GATEWAY_KEY")),
		AutoPrint:             getBool("AUTO_PRINT", true),
		AutoOpenDrawer:        getBool("AUTO_OPEN_DRAWER", true),
		LargeChangeThreshold:  threshold,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
