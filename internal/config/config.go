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
	CashSummaryTTLSeconds int

	// Allocation defaults; stored settings override them per dataset.
	WeightCostPerLb float64
	TaxRatePercent  float64

	// Markup factor pairs for the pricing deriver.
	ItemEntryMarkupMin float64
	ItemEntryMarkupMax float64
	RecalcMarkupMin    float64
	RecalcMarkupMax    float64
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	cashTTL, err := strconv.Atoi(getEnv("CASH_SUMMARY_TTL_SECONDS", "30"))
	if err != nil || cashTTL < 1 {
		cashTTL = 30
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
		CashSummaryTTLSeconds: cashTTL,
		WeightCostPerLb:       getEnvFloat("WEIGHT_COST_PER_LB", 7.00),
		TaxRatePercent:        getEnvFloat("TAX_RATE_PERCENT", 8.775),
		ItemEntryMarkupMin:    getEnvFloat("ITEM_ENTRY_MARKUP_MIN", 1.5),
		ItemEntryMarkupMax:    getEnvFloat("ITEM_ENTRY_MARKUP_MAX", 2.0),
		RecalcMarkupMin:       getEnvFloat("RECALC_MARKUP_MIN", 1.4),
		RecalcMarkupMax:       getEnvFloat("RECALC_MARKUP_MAX", 1.8),
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

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
