package asr

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultEndpoint is the upstream dictation websocket endpoint.
	DefaultEndpoint = "wss://iat-api.xfyun.cn/v2/iat"
	// DefaultHost is the host the connection URL is signed for.
	DefaultHost = "iat-api.xfyun.cn"

	// chunkSize is 40ms of audio under the PCM contract (16kHz, 16-bit, mono).
	chunkSize = 1280
	// chunkInterval paces one-shot uploads at the live capture rate so the
	// recognizer's buffer is not overwhelmed.
	chunkInterval = 40 * time.Millisecond

	realtimeReadTimeout = 30 * time.Second
	oneShotReadTimeout  = 10 * time.Second
)

// Config holds credentials and recognition settings for the upstream
// recognizer. AppID, APIKey and APISecret must all be present for live
// recognition; otherwise the client runs in simulated mode.
type Config struct {
	AppID     string
	APIKey    string
	APISecret string

	Endpoint string // defaults to DefaultEndpoint
	Host     string // defaults to DefaultHost

	Language          string // zh_cn or en_us, defaults to zh_cn
	Accent            string // defaults to mandarin
	SilenceTimeoutMs  int    // vad_eos, defaults to 10000
	DynamicCorrection bool   // enable wpgs partial rewrites
	Punctuation       bool
	NormalizeDigits   bool

	ReadTimeout    time.Duration // realtime per-read deadline, defaults to 30s
	SimulatedDelay time.Duration // simulated-mode latency, defaults to 1s
}

// Frame is one client audio chunk. Last marks end of utterance and carries
// no audio. Each frame is consumed exactly once by the outbound flow.
type Frame struct {
	Data []byte
	Last bool
}

// Client speaks the upstream streaming dictation protocol. With incomplete
// credentials it is constructed in simulated mode: a fixed transcript is
// returned after a bounded delay and the network is never dialed.
type Client struct {
	cfg       Config
	simulated bool
	logger    *log.Logger
	now       func() time.Time
	dialer    *websocket.Dialer
	simSeq    atomic.Uint32
}

// NewClient builds a recognizer client, selecting simulated mode when
// credentials are incomplete.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Language == "" {
		cfg.Language = "zh_cn"
	}
	if cfg.Accent == "" {
		cfg.Accent = "mandarin"
	}
	if cfg.SilenceTimeoutMs == 0 {
		cfg.SilenceTimeoutMs = 10000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = realtimeReadTimeout
	}
	if cfg.SimulatedDelay == 0 {
		cfg.SimulatedDelay = time.Second
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		dialer: websocket.DefaultDialer,
	}
	c.simulated = cfg.AppID == "" || cfg.APIKey == "" || cfg.APISecret == ""
	if c.simulated {
		logger.Printf("asr: credentials not configured, running in simulated mode")
	} else {
		logger.Printf("asr: configured for app %s***", truncateID(cfg.AppID))
	}
	return c
}

// Simulated reports whether the client was constructed without credentials
// and returns canned transcripts instead of dialing the recognizer.
func (c *Client) Simulated() bool { return c.simulated }

func truncateID(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}

// TranscribeStream relays client audio frames to the recognizer and
// reassembles its incremental results into a transcript. Improved partial
// transcripts are sent to partials as they arrive; the final transcript is
// returned once the recognizer reports completion.
//
// The caller feeds audio through frames and signals end of utterance with
// a Last frame. Closing frames aborts the attempt without sending an
// end-of-utterance marker (client cancellation or disconnect).
func (c *Client) TranscribeStream(ctx context.Context, frames <-chan Frame, partials chan<- string) (string, error) {
	if c.simulated {
		return c.simulateStream(ctx, frames, partials)
	}

	authURL, err := signedURL(c.cfg.Endpoint, c.cfg.Host, c.cfg.APIKey, c.cfg.APISecret, c.now())
	if err != nil {
		return "", err
	}

	conn, _, err := c.dialer.DialContext(ctx, authURL, nil)
	if err != nil {
		return "", fmt.Errorf("connect recognizer: %w", err)
	}

	// The connection is released exactly once, whichever flow finishes
	// first and whether or not either failed.
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	first, err := c.encodeFirstFrame()
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return "", fmt.Errorf("send first frame: %w", err)
	}

	done := newDoneLatch()
	rec := newTranscript()

	var (
		wg    sync.WaitGroup
		final string
		inErr error
	)

	// Unblock the inbound read on cancellation; the latch alone cannot
	// interrupt a blocked ReadMessage.
	go func() {
		select {
		case <-ctx.Done():
			done.Set()
			closeConn()
		case <-done.Done():
		}
	}()

	wg.Add(2)

	// Inbound flow: consume result envelopes until a terminal status, an
	// error code, a read timeout or a transport failure. Every exit path
	// sets the latch so the outbound flow can never hang.
	go func() {
		defer wg.Done()
		defer done.Set()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				inErr = fmt.Errorf("read recognizer: %w", err)
				return
			}

			env, err := decodeEnvelope(msg)
			if err != nil {
				inErr = err
				return
			}

			f := env.fragment()
			if f.Text != "" || f.Replace {
				cur := rec.apply(f)
				final = cur
				select {
				case partials <- cur:
				case <-ctx.Done():
					inErr = ctx.Err()
					return
				}
			}

			if env.final() {
				final = rec.String()
				return
			}
		}
	}()

	// Outbound flow: forward client audio until end of utterance. Frames
	// are dropped once the latch is set, and the end marker is skipped when
	// recognition already concluded on its own (silence detection).
	go func() {
		defer wg.Done()

		for {
			select {
			case <-done.Done():
				return
			case f, ok := <-frames:
				if !ok {
					// Cancelled: stop without an end marker.
					return
				}
				if done.IsSet() {
					return
				}
				msg, err := encodeAudioFrame(f.Data, f.Last)
				if err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					c.logger.Printf("asr: send audio frame: %v", err)
					return
				}
				if f.Last {
					return
				}
			}
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if inErr != nil {
		return "", inErr
	}
	return final, nil
}

// TranscribeBytes runs one-shot recognition over a complete PCM buffer
// (s16le, 16kHz, mono), pacing the upload at the live capture rate.
func (c *Client) TranscribeBytes(ctx context.Context, pcm []byte) (string, error) {
	if c.simulated {
		select {
		case <-time.After(c.cfg.SimulatedDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return c.pickSimulated(), nil
	}

	authURL, err := signedURL(c.cfg.Endpoint, c.cfg.Host, c.cfg.APIKey, c.cfg.APISecret, c.now())
	if err != nil {
		return "", err
	}

	conn, _, err := c.dialer.DialContext(ctx, authURL, nil)
	if err != nil {
		return "", fmt.Errorf("connect recognizer: %w", err)
	}
	defer conn.Close()

	first, err := c.encodeFirstFrame()
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return "", fmt.Errorf("send first frame: %w", err)
	}

	if err := c.sendChunks(ctx, conn, pcm); err != nil {
		return "", err
	}

	// This path predates dynamic correction: word text is concatenated in
	// arrival order until the terminal status.
	var full strings.Builder
	for {
		_ = conn.SetReadDeadline(time.Now().Add(oneShotReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read recognizer: %w", err)
		}

		env, err := decodeEnvelope(msg)
		if err != nil {
			return "", err
		}

		full.WriteString(env.text())
		if env.final() {
			return full.String(), nil
		}
	}
}

func (c *Client) sendChunks(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	if len(pcm) == 0 {
		msg, err := encodeAudioFrame(nil, true)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, msg)
	}

	for off := 0; off < len(pcm); off += chunkSize {
		end := off + chunkSize
		last := end >= len(pcm)
		if end > len(pcm) {
			end = len(pcm)
		}

		msg, err := encodeAudioFrame(pcm[off:end], last)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("send audio frame: %w", err)
		}

		select {
		case <-time.After(chunkInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// simulatedTranscripts rotate through realistic procurement utterances so
// the rest of the pipeline stays exercisable without credentials.
var simulatedTranscripts = []string{
	"供应商是双汇冷鲜肉直供，去皮五花肉30斤，68块一斤，一共2040块",
	"城南蔬菜批发，本地土豆50斤，1块2一斤，青椒20斤，4块5一斤",
	"供应商雪花啤酒总代，雪花勇闯天涯50箱，38块一箱",
}

func (c *Client) pickSimulated() string {
	n := c.simSeq.Add(1) - 1
	return simulatedTranscripts[int(n)%len(simulatedTranscripts)]
}

// simulateStream mirrors the realtime contract in simulated mode: client
// audio is drained, one partial is emitted and a canned transcript is
// returned after a bounded delay.
func (c *Client) simulateStream(ctx context.Context, frames <-chan Frame, partials chan<- string) (string, error) {
	go func() {
		for range frames {
		}
	}()

	select {
	case <-time.After(c.cfg.SimulatedDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	text := c.pickSimulated()
	select {
	case partials <- text:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return text, nil
}
