package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrEmptyReply   = errors.New("model returned no content")
	ErrReplyBlocked = errors.New("model refused to answer")
)

// maxReplyBytes bounds how much of a model response is read.
const maxReplyBytes = 1 << 20

// GeminiModel calls the Gemini generateContent REST endpoint.
type GeminiModel struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

func NewGeminiModel(baseURL, model, apiKey string, timeout time.Duration) *GeminiModel {
	return &GeminiModel{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

// Name identifies the upstream, e.g. for circuit breaker keys.
func (g *GeminiModel) Name() string {
	return "gemini:" + g.model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt once and returns the reply text. It asks for an
// application/json response so the model leans toward bare JSON.
func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}

	if reason := decoded.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("%w: %s", ErrReplyBlocked, reason)
	}
	if len(decoded.Candidates) == 0 {
		return "", ErrEmptyReply
	}

	candidate := decoded.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return "", fmt.Errorf("%w: %s", ErrReplyBlocked, candidate.FinishReason)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyReply
	}
	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
