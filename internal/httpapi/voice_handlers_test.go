package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wycheng/voicelist/internal/extract"
)

func newTestServer(t *testing.T, st *stubTranscriber, ext *stubExtractor) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(testLogger(), st, ext))
	t.Cleanup(srv.Close)
	return srv
}

func audioUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleTranscribe(t *testing.T) {
	st := &stubTranscriber{final: "供应商是双汇，五花肉30斤"}
	ext := &stubExtractor{result: &extract.Result{Supplier: "双汇", Items: []extract.LineItem{}}}
	srv := newTestServer(t, st, ext)

	body, contentType := audioUpload(t, "clip.pcm", []byte("raw-pcm-bytes"))
	resp, err := http.Post(srv.URL+"/api/voice/transcribe", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Success bool           `json:"success"`
		RawText string         `json:"raw_text"`
		Result  extract.Result `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.RawText != st.final || out.Result.Supplier != "双汇" {
		t.Errorf("response = %+v", out)
	}
}

func TestHandleTranscribeMissingFile(t *testing.T) {
	srv := newTestServer(t, &stubTranscriber{}, &stubExtractor{})

	resp, err := http.Post(srv.URL+"/api/voice/transcribe", "multipart/form-data; boundary=x", strings.NewReader("--x--"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleTranscribeRecognitionFailure(t *testing.T) {
	st := &stubTranscriber{err: errors.New("upstream unreachable")}
	srv := newTestServer(t, st, &stubExtractor{})

	body, contentType := audioUpload(t, "clip.pcm", []byte("raw"))
	resp, err := http.Post(srv.URL+"/api/voice/transcribe", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHandleExtract(t *testing.T) {
	ext := &stubExtractor{result: &extract.Result{Supplier: "城南蔬菜批发", Items: []extract.LineItem{}}}
	srv := newTestServer(t, &stubTranscriber{}, ext)

	resp, err := http.Post(srv.URL+"/api/voice/extract", "application/json",
		strings.NewReader(`{"text":"本地土豆50斤"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Success bool           `json:"success"`
		Result  extract.Result `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Result.Supplier != "城南蔬菜批发" {
		t.Errorf("response = %+v", out)
	}

	ext.mu.Lock()
	defer ext.mu.Unlock()
	if len(ext.seen) != 1 || ext.seen[0] != "本地土豆50斤" {
		t.Errorf("extractor saw %v", ext.seen)
	}
}

func TestHandleExtractBadRequests(t *testing.T) {
	srv := newTestServer(t, &stubTranscriber{}, &stubExtractor{})

	for _, body := range []string{"not json", `{"text":"  "}`} {
		resp, err := http.Post(srv.URL+"/api/voice/extract", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestHandleVoiceHealth(t *testing.T) {
	tests := []struct {
		name          string
		asrSim        bool
		extractorSim  bool
		wantASR       string
		wantExtractor string
	}{
		{"configured", false, false, "configured", "configured"},
		{"simulated", true, true, "simulated", "simulated"},
		{"mixed", true, false, "simulated", "configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &stubTranscriber{simulated: tt.asrSim}
			ext := &stubExtractor{simulated: tt.extractorSim}
			srv := newTestServer(t, st, ext)

			resp, err := http.Get(srv.URL + "/api/voice/health")
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var out struct {
				Status   string            `json:"status"`
				Services map[string]string `json:"services"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Status != "ok" {
				t.Errorf("status = %q", out.Status)
			}
			if out.Services["asr"] != tt.wantASR || out.Services["extractor"] != tt.wantExtractor {
				t.Errorf("services = %v", out.Services)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubTranscriber{}, &stubExtractor{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubTranscriber{}, &stubExtractor{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/voice/extract", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
