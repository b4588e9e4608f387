package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/wycheng/voicelist/internal/asr"
	"github.com/wycheng/voicelist/internal/extract"
)

// Transcriber converts audio into text, either as a realtime stream or as a
// one-shot buffer.
type Transcriber interface {
	TranscribeStream(ctx context.Context, frames <-chan asr.Frame, partials chan<- string) (string, error)
	TranscribeBytes(ctx context.Context, pcm []byte) (string, error)
	Simulated() bool
}

// Extractor turns a recognized transcript into a structured purchase list.
type Extractor interface {
	Extract(ctx context.Context, text string) *extract.Result
	Simulated() bool
}

type Router struct {
	logger    *log.Logger
	asr       Transcriber
	extractor Extractor
	mux       *http.ServeMux
}

func NewRouter(logger *log.Logger, transcriber Transcriber, extractor Extractor) http.Handler {
	r := &Router{
		logger:    logger,
		asr:       transcriber,
		extractor: extractor,
		mux:       http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Realtime dictation session
	r.mux.HandleFunc("GET /api/voice/ws", r.handleVoiceWS)

	// One-shot recognition and extraction
	r.mux.HandleFunc("POST /api/voice/transcribe", r.handleTranscribe)
	r.mux.HandleFunc("POST /api/voice/extract", r.handleExtract)
	r.mux.HandleFunc("GET /api/voice/health", r.handleVoiceHealth)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
