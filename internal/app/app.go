package app

import (
	"log"
	"net/http"
	"time"

	"github.com/wycheng/voicelist/internal/asr"
	"github.com/wycheng/voicelist/internal/extract"
	"github.com/wycheng/voicelist/internal/httpapi"
)

type App struct {
	cfg       Config
	logger    *log.Logger
	asr       *asr.Client
	extractor *extract.Client
}

func New(cfg Config, logger *log.Logger) *App {
	recognizer := asr.NewClient(asr.Config{
		AppID:             cfg.XunfeiAppID,
		APIKey:            cfg.XunfeiAPIKey,
		APISecret:         cfg.XunfeiAPISecret,
		Language:          cfg.ASRLanguage,
		Accent:            cfg.ASRAccent,
		SilenceTimeoutMs:  cfg.ASRSilenceTimeoutMs,
		DynamicCorrection: true,
		Punctuation:       true,
		NormalizeDigits:   true,
		SimulatedDelay:    time.Second,
	}, logger)

	extractor := extract.NewClient(extract.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		asr:       recognizer,
		extractor: extractor,
	}
}

func (a *App) Router() http.Handler {
	return httpapi.NewRouter(a.logger, a.asr, a.extractor)
}
