package asr

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestEncodeFirstFrame(t *testing.T) {
	c := NewClient(Config{
		AppID:             "app1234",
		APIKey:            "k",
		APISecret:         "s",
		DynamicCorrection: true,
		Punctuation:       true,
		NormalizeDigits:   true,
	}, testLogger())

	raw, err := c.encodeFirstFrame()
	if err != nil {
		t.Fatalf("encodeFirstFrame: %v", err)
	}

	var f firstFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("first frame is not valid JSON: %v", err)
	}

	if f.Common.AppID != "app1234" {
		t.Errorf("app_id = %q, want %q", f.Common.AppID, "app1234")
	}
	if f.Business.Language != "zh_cn" {
		t.Errorf("language = %q, want default zh_cn", f.Business.Language)
	}
	if f.Business.Domain != "iat" {
		t.Errorf("domain = %q, want iat", f.Business.Domain)
	}
	if f.Business.VadEOS != 10000 {
		t.Errorf("vad_eos = %d, want default 10000", f.Business.VadEOS)
	}
	if f.Business.DWA != "wpgs" {
		t.Errorf("dwa = %q, want wpgs", f.Business.DWA)
	}
	if f.Business.PTT != 1 || f.Business.NuNum != 1 {
		t.Errorf("ptt/nunum = %d/%d, want 1/1", f.Business.PTT, f.Business.NuNum)
	}
	if f.Data.Status != statusFirst {
		t.Errorf("data.status = %d, want %d", f.Data.Status, statusFirst)
	}
	if f.Data.Audio != "" {
		t.Errorf("first frame audio = %q, want empty", f.Data.Audio)
	}
	if f.Data.Format != audioFormat || f.Data.Encoding != audioEncoding {
		t.Errorf("format/encoding = %q/%q, want %q/%q", f.Data.Format, f.Data.Encoding, audioFormat, audioEncoding)
	}
}

func TestEncodeFirstFrameCorrectionDisabled(t *testing.T) {
	c := NewClient(Config{AppID: "a", APIKey: "k", APISecret: "s"}, testLogger())

	raw, err := c.encodeFirstFrame()
	if err != nil {
		t.Fatalf("encodeFirstFrame: %v", err)
	}
	if strings.Contains(string(raw), "dwa") {
		t.Errorf("dwa should be omitted when correction is disabled: %s", raw)
	}
}

func TestEncodeAudioFrame(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	raw, err := encodeAudioFrame(pcm, false)
	if err != nil {
		t.Fatalf("encodeAudioFrame: %v", err)
	}
	var f audioFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("audio frame is not valid JSON: %v", err)
	}
	if f.Data.Status != statusMiddle {
		t.Errorf("status = %d, want %d", f.Data.Status, statusMiddle)
	}
	if f.Data.Audio != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("audio = %q, want base64 of payload", f.Data.Audio)
	}

	raw, err = encodeAudioFrame(nil, true)
	if err != nil {
		t.Fatalf("encodeAudioFrame last: %v", err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("last frame is not valid JSON: %v", err)
	}
	if f.Data.Status != statusLast {
		t.Errorf("last status = %d, want %d", f.Data.Status, statusLast)
	}
	if f.Data.Audio != "" {
		t.Errorf("last frame audio = %q, want empty", f.Data.Audio)
	}
}

func TestDecodeEnvelopeFragment(t *testing.T) {
	raw := `{"code":0,"data":{"status":1,"result":{"pgs":"apd","sn":3,"ws":[{"cw":[{"w":"你"}]},{"cw":[{"w":"好"}]}]}}}`

	env, err := decodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if env.final() {
		t.Error("status 1 should not be final")
	}

	f := env.fragment()
	if f.SN != 3 || f.Text != "你好" || f.Replace {
		t.Errorf("fragment = %+v, want sn=3 text=你好 append", f)
	}
}

func TestDecodeEnvelopeReplaceFragment(t *testing.T) {
	raw := `{"code":0,"data":{"status":1,"result":{"pgs":"rpl","rg":[0,2],"sn":3,"ws":[{"cw":[{"w":"改"}]}]}}}`

	env, err := decodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}

	f := env.fragment()
	if !f.Replace || f.RangeStart != 0 || f.RangeEnd != 2 {
		t.Errorf("fragment = %+v, want replace over [0,2]", f)
	}
	if f.Text != "改" {
		t.Errorf("text = %q, want 改", f.Text)
	}
}

func TestDecodeEnvelopeShortRangeFallsBackToAppend(t *testing.T) {
	raw := `{"code":0,"data":{"status":1,"result":{"pgs":"rpl","rg":[1],"sn":2,"ws":[{"cw":[{"w":"字"}]}]}}}`

	env, err := decodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if f := env.fragment(); f.Replace {
		t.Errorf("one-element range must not select replace mode: %+v", f)
	}
}

func TestDecodeEnvelopeTerminal(t *testing.T) {
	raw := `{"code":0,"data":{"status":2,"result":{"sn":5,"ws":[]}}}`

	env, err := decodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if !env.final() {
		t.Error("status 2 must be final")
	}
	if env.text() != "" {
		t.Errorf("text = %q, want empty", env.text())
	}
}

func TestDecodeEnvelopeErrorCode(t *testing.T) {
	raw := `{"code":10165,"message":"invalid handle"}`

	_, err := decodeEnvelope([]byte(raw))
	if err == nil {
		t.Fatal("non-zero code must be an error")
	}
	if !strings.Contains(err.Error(), "10165") || !strings.Contains(err.Error(), "invalid handle") {
		t.Errorf("error %q should carry code and message", err)
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	if _, err := decodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("malformed payload must be an error")
	}
}
