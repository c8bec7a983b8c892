package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiReply(text, finishReason string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}},
			"finishReason": finishReason,
		}},
	})
	return string(body)
}

func TestGeminiModel_Generate(t *testing.T) {
	var gotPath, gotKey, gotMime, gotPrompt string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")

		var req generateRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotPrompt = req.Contents[0].Parts[0].Text
			gotMime = req.GenerationConfig.ResponseMimeType
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, geminiReply(validReply, "STOP"))
	}))
	defer server.Close()

	model := NewGeminiModel(server.URL+"/", "gemini-1.5-flash", "secret-key", 5*time.Second)
	reply, err := model.Generate(context.Background(), "hola")

	require.NoError(t, err)
	assert.Equal(t, validReply, reply)
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotMime)
	assert.Equal(t, "hola", gotPrompt)
	assert.Equal(t, "gemini:gemini-1.5-flash", model.Name())
}

func TestGeminiModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"internal"}}`},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"message":"quota"}}`},
		{name: "not json", status: http.StatusOK, body: `<html>gateway</html>`},
		{name: "prompt blocked", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, wantErr: ErrReplyBlocked},
		{name: "safety finish", status: http.StatusOK, body: geminiReply("", "SAFETY"), wantErr: ErrReplyBlocked},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantErr: ErrEmptyReply},
		{name: "blank text", status: http.StatusOK, body: geminiReply("  ", "STOP"), wantErr: ErrEmptyReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewGeminiModel(server.URL, "m", "k", 5*time.Second).Generate(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestGeminiModel_HonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewGeminiModel(server.URL, "m", "k", time.Minute).Generate(ctx, "p")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
