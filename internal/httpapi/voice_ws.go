package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wycheng/voicelist/internal/asr"
	"github.com/wycheng/voicelist/internal/extract"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frameBuffer sizes the audio queue between the client read loop and the
// recognizer relay. At 40ms per chunk this holds about 2.5s of speech.
const frameBuffer = 64

type sessionState int

const (
	stateIdle sessionState = iota
	stateListening
	stateProcessing
)

// clientMessage is one control or audio message from the browser.
type clientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"` // base64 PCM for "audio" messages
}

// serverMessage is one event pushed to the browser.
type serverMessage struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Text    string          `json:"text,omitempty"`
	RawText string          `json:"raw_text,omitempty"`
	Result  *extract.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// voiceSession manages one browser's dictation connection. A session can run
// several recognition attempts back to back; each attempt streams audio to
// the recognizer and ends with a structured purchase list.
type voiceSession struct {
	id string

	conn   *websocket.Conn
	connMu sync.Mutex

	asr       Transcriber
	extractor Extractor
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         sessionState
	frames        chan asr.Frame
	attemptCancel context.CancelFunc
}

func (r *Router) handleVoiceWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("voice_ws: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	session := &voiceSession{
		id:        uuid.NewString(),
		conn:      conn,
		asr:       r.asr,
		extractor: r.extractor,
		logger:    r.logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	r.logger.Printf("voice_ws: session %s connected", session.id)
	session.run()
}

func (s *voiceSession) run() {
	defer s.cleanup()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("voice_ws: session %s closed", s.id)
			} else {
				s.logger.Printf("voice_ws: session %s read error: %v", s.id, err)
			}
			return
		}

		var cm clientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			s.logger.Printf("voice_ws: session %s: malformed message: %v", s.id, err)
			continue
		}

		switch cm.Type {
		case "start":
			s.handleStart()
		case "audio":
			s.handleAudio(cm.Data)
		case "end":
			s.handleEnd()
		case "cancel":
			s.logger.Printf("voice_ws: session %s: canceled by client", s.id)
			return
		case "close":
			s.logger.Printf("voice_ws: session %s: closed by client", s.id)
			return
		default:
			s.logger.Printf("voice_ws: session %s: unknown message type %q", s.id, cm.Type)
		}
	}
}

func (s *voiceSession) handleStart() {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		s.send(serverMessage{Type: "error", Status: "error", Error: "识别正在进行中"})
		return
	}
	s.state = stateListening
	frames := make(chan asr.Frame, frameBuffer)
	s.frames = frames
	ctx, cancel := context.WithCancel(s.ctx)
	s.attemptCancel = cancel
	s.mu.Unlock()

	s.send(serverMessage{Type: "status", Status: "listening", Message: "开始录音..."})
	go s.runAttempt(ctx, frames)
}

func (s *voiceSession) handleAudio(data string) {
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		s.logger.Printf("voice_ws: session %s: bad audio payload: %v", s.id, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateListening || s.frames == nil {
		return
	}
	select {
	case s.frames <- asr.Frame{Data: audio}:
	default:
		s.logger.Printf("voice_ws: session %s: dropping audio frame, queue full", s.id)
	}
}

func (s *voiceSession) handleEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateListening || s.frames == nil {
		return
	}
	select {
	case s.frames <- asr.Frame{Last: true}:
	default:
		s.logger.Printf("voice_ws: session %s: could not queue end marker", s.id)
	}
}

// runAttempt drives one recognition attempt: it relays queued audio to the
// recognizer, forwards partial transcripts as they arrive, then hands the
// final transcript to the extractor.
func (s *voiceSession) runAttempt(ctx context.Context, frames chan asr.Frame) {
	partials := make(chan string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for text := range partials {
			s.send(serverMessage{Type: "partial", Text: text})
		}
	}()

	final, err := s.asr.TranscribeStream(ctx, frames, partials)
	close(partials)
	wg.Wait()

	if err != nil {
		if ctx.Err() != nil {
			// Canceled attempts end silently; the client asked for it.
			s.finishAttempt(frames)
			return
		}
		s.logger.Printf("voice_ws: session %s: recognition failed: %v", s.id, err)
		s.send(serverMessage{Type: "error", Status: "error", Error: "语音识别失败，请重试"})
		s.finishAttempt(frames)
		return
	}

	s.send(serverMessage{Type: "stop_recording", Message: "识别完成，停止录音"})

	s.mu.Lock()
	s.state = stateProcessing
	s.mu.Unlock()
	s.send(serverMessage{Type: "status", Status: "processing", Message: "正在解析..."})

	result := s.extractor.Extract(ctx, final)
	if ctx.Err() != nil {
		s.finishAttempt(frames)
		return
	}
	s.send(serverMessage{Type: "result", Status: "completed", RawText: final, Result: result})
	s.logger.Printf("voice_ws: session %s: attempt completed, %d chars recognized", s.id, len(final))
	s.finishAttempt(frames)
}

// finishAttempt returns the session to idle, unless a cancel already tore
// this attempt down and a newer one owns the session.
func (s *voiceSession) finishAttempt(frames chan asr.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames != frames {
		return
	}
	s.abortLocked()
}

// abortLocked tears down the current attempt. Callers hold s.mu. The
// attempt context is canceled before the frame channel closes so the relay
// never mistakes an aborted attempt for a drained one.
func (s *voiceSession) abortLocked() {
	if s.attemptCancel != nil {
		s.attemptCancel()
		s.attemptCancel = nil
	}
	if s.frames != nil {
		close(s.frames)
		s.frames = nil
	}
	s.state = stateIdle
}

func (s *voiceSession) send(msg serverMessage) {
	s.connMu.Lock()
	err := s.conn.WriteJSON(msg)
	s.connMu.Unlock()
	if err != nil {
		s.logger.Printf("voice_ws: session %s: write error: %v", s.id, err)
	}
}

func (s *voiceSession) cleanup() {
	s.cancel()

	s.mu.Lock()
	if s.frames != nil {
		close(s.frames)
		s.frames = nil
	}
	s.mu.Unlock()

	s.connMu.Lock()
	s.conn.Close()
	s.connMu.Unlock()

	s.logger.Printf("voice_ws: session %s cleaned up", s.id)
}
