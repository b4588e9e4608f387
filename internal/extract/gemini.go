package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client extracts structured purchase lists from transcripts via the
// Gemini generateContent API. Without an API key it runs in simulated mode
// and answers from the rule-based fallback only.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Config holds configuration for the extraction client.
type Config struct {
	APIKey  string
	Model   string // e.g. "gemini-2.0-flash"
	BaseURL string // overridden in tests
}

// NewClient creates an extraction client, selecting simulated mode when no
// API key is configured.
func NewClient(cfg Config, logger *log.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
	if c.Simulated() {
		logger.Printf("extract: no API key configured, running in simulated mode")
	} else {
		logger.Printf("extract: configured (%s)", model)
	}
	return c
}

// Simulated reports whether the client answers from the rule-based
// fallback instead of calling the extraction API.
func (c *Client) Simulated() bool { return c.apiKey == "" }

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract converts a recognized transcript into a structured purchase
// list. Extraction failures never fail the session: any error falls back
// to the deterministic rule-based result.
func (c *Client) Extract(ctx context.Context, text string) *Result {
	if c.Simulated() || strings.TrimSpace(text) == "" {
		return fallbackResult(text)
	}

	result, err := c.extractLive(ctx, text)
	if err != nil {
		c.logger.Printf("extract: falling back to rule-based result: %v", err)
		return fallbackResult(text)
	}
	return result
}

func (c *Client) extractLive(ctx context.Context, text string) (*Result, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: extractionPrompt(text)}}}},
		// Low temperature keeps the JSON output stable.
		GenerationConfig: generationConfig{Temperature: 0.1},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction API error: %s - %s", resp.Status, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var answer strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		answer.WriteString(p.Text)
	}

	payload, ok := extractJSON(answer.String())
	if !ok {
		return nil, fmt.Errorf("no JSON object in response: %q", answer.String())
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("parse purchase list: %w (content: %s)", err, payload)
	}

	c.logger.Printf("extract: parsed %d items for supplier %q", len(result.Items), result.Supplier)
	return &result, nil
}

// extractJSON locates the JSON object in a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text, true
	}

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			if inner := strings.TrimSpace(rest[:j]); inner != "" {
				return inner, true
			}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], true
	}
	return "", false
}
