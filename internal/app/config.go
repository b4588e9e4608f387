package app

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	LogLevel      string
	SentryDSN     string

	// Speech recognition (iFlytek)
	XunfeiAppID     string
	XunfeiAPIKey    string
	XunfeiAPISecret string

	// ASR settings
	ASRLanguage         string
	ASRAccent           string
	ASRSilenceTimeoutMs int // upstream silence detection window

	// Extraction (Gemini)
	GeminiAPIKey string
	GeminiModel  string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		// Speech recognition (iFlytek)
		XunfeiAppID:     getenv("XUNFEI_APP_ID", ""),
		XunfeiAPIKey:    getenv("XUNFEI_API_KEY", ""),
		XunfeiAPISecret: getenv("XUNFEI_API_SECRET", ""),

		// ASR settings
		ASRLanguage:         getenv("ASR_LANGUAGE", "zh_cn"),
		ASRAccent:           getenv("ASR_ACCENT", "mandarin"),
		ASRSilenceTimeoutMs: getenvIntClamped("ASR_SILENCE_TIMEOUT_MS", 10000, 1000, 60000),

		// Extraction (Gemini)
		GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
