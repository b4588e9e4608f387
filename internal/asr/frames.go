package asr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Frame status values of the upstream wire protocol. The same numbering is
// used for outgoing audio frames (data.status) and for incoming envelopes
// (data.status), where 2 marks the terminal response.
const (
	statusFirst  = 0
	statusMiddle = 1
	statusLast   = 2
)

// Audio contract shared with the recognizer: signed 16-bit little-endian
// PCM, 16 kHz, mono, sent raw (base64 over the wire).
const (
	audioFormat   = "audio/L16;rate=16000"
	audioEncoding = "raw"
)

type frameCommon struct {
	AppID string `json:"app_id"`
}

type frameBusiness struct {
	Language string `json:"language"`
	Domain   string `json:"domain"`
	Accent   string `json:"accent"`
	VadEOS   int    `json:"vad_eos"`
	DWA      string `json:"dwa,omitempty"`
	PTT      int    `json:"ptt"`
	NuNum    int    `json:"nunum"`
}

type frameData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Encoding string `json:"encoding"`
	Audio    string `json:"audio"`
}

// firstFrame opens a recognition attempt and carries the business
// configuration. Its audio payload is always empty.
type firstFrame struct {
	Common   frameCommon   `json:"common"`
	Business frameBusiness `json:"business"`
	Data     frameData     `json:"data"`
}

type audioFrame struct {
	Data frameData `json:"data"`
}

// encodeFirstFrame builds the configuration frame from the client's
// recognition settings.
func (c *Client) encodeFirstFrame() ([]byte, error) {
	biz := frameBusiness{
		Language: c.cfg.Language,
		Domain:   "iat",
		Accent:   c.cfg.Accent,
		VadEOS:   c.cfg.SilenceTimeoutMs,
	}
	if c.cfg.DynamicCorrection {
		biz.DWA = "wpgs"
	}
	if c.cfg.Punctuation {
		biz.PTT = 1
	}
	if c.cfg.NormalizeDigits {
		biz.NuNum = 1
	}

	f := firstFrame{
		Common:   frameCommon{AppID: c.cfg.AppID},
		Business: biz,
		Data: frameData{
			Status:   statusFirst,
			Format:   audioFormat,
			Encoding: audioEncoding,
			Audio:    "",
		},
	}
	return json.Marshal(f)
}

// encodeAudioFrame wraps one PCM chunk as a middle frame, or an empty
// payload as the last-frame marker.
func encodeAudioFrame(audio []byte, last bool) ([]byte, error) {
	status := statusMiddle
	if last {
		status = statusLast
	}
	f := audioFrame{
		Data: frameData{
			Status:   status,
			Format:   audioFormat,
			Encoding: audioEncoding,
			Audio:    base64.StdEncoding.EncodeToString(audio),
		},
	}
	return json.Marshal(f)
}

// envelope is a decoded response from the recognizer.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
		Result struct {
			PGS string `json:"pgs"`
			RG  []int  `json:"rg"`
			SN  int    `json:"sn"`
			WS  []struct {
				CW []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// decodeEnvelope parses one upstream message. A non-zero code is a
// terminal protocol error for the current attempt and is returned as an
// error, never retried.
func decodeEnvelope(msg []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("decode recognizer response: %w", err)
	}
	if env.Code != 0 {
		message := env.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("recognizer error %d: %s", env.Code, message)
	}
	return &env, nil
}

// text concatenates the envelope's word groups in order.
func (e *envelope) text() string {
	var b strings.Builder
	for _, ws := range e.Data.Result.WS {
		for _, cw := range ws.CW {
			b.WriteString(cw.W)
		}
	}
	return b.String()
}

// fragment converts the envelope's correction metadata into a transcript
// fragment. pgs "rpl" with a two-element range selects replace mode;
// anything else appends at the envelope's sequence number.
func (e *envelope) fragment() fragment {
	f := fragment{SN: e.Data.Result.SN, Text: e.text()}
	if e.Data.Result.PGS == "rpl" && len(e.Data.Result.RG) >= 2 {
		f.Replace = true
		f.RangeStart = e.Data.Result.RG[0]
		f.RangeEnd = e.Data.Result.RG[1]
	}
	return f
}

// final reports whether this envelope closes the recognition attempt.
func (e *envelope) final() bool { return e.Data.Status == statusLast }
