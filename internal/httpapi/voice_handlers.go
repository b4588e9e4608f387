package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/wycheng/voicelist/internal/audio"
)

// maxUploadBytes caps one-shot audio uploads (about 5 minutes of 16kHz PCM).
const maxUploadBytes = 10 << 20

type transcribeResponse struct {
	Success bool   `json:"success"`
	RawText string `json:"raw_text"`
	Result  any    `json:"result"`
}

// handleTranscribe accepts a multipart audio upload, recognizes it in one
// shot and returns the structured purchase list.
func (r *Router) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	file, header, err := req.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing audio file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read audio file"})
		return
	}

	pcm, err := audio.ToPCM(req.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		r.logger.Printf("transcribe: audio conversion failed: %v", err)
		captureError(req, err, "transcribe: audio conversion failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unsupported audio format"})
		return
	}

	text, err := r.asr.TranscribeBytes(req.Context(), pcm)
	if err != nil {
		r.logger.Printf("transcribe: recognition failed: %v", err)
		captureError(req, err, "transcribe: recognition failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "speech recognition failed"})
		return
	}

	result := r.extractor.Extract(req.Context(), text)
	writeJSON(w, http.StatusOK, transcribeResponse{Success: true, RawText: text, Result: result})
}

type extractRequest struct {
	Text string `json:"text"`
}

// handleExtract runs extraction on already-recognized text, used by clients
// that re-run a corrected transcript.
func (r *Router) handleExtract(w http.ResponseWriter, req *http.Request) {
	var body extractRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	result := r.extractor.Extract(req.Context(), body.Text)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func serviceMode(simulated bool) string {
	if simulated {
		return "simulated"
	}
	return "configured"
}

// handleVoiceHealth reports whether the recognizer and extractor run against
// real providers or in simulated mode.
func (r *Router) handleVoiceHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"services": map[string]string{
			"asr":       serviceMode(r.asr.Simulated()),
			"extractor": serviceMode(r.extractor.Simulated()),
		},
	})
}
