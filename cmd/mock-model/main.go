// Command mock-model is a local stand-in for the Gemini generateContent
// endpoint. The model name in the URL picks the behaviour, so the service can
// be pointed at it with GEMINI_BASE_URL and GEMINI_MODEL.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const validReply = `{"summary":"Actividad sospechosa detectada","severity":"HIGH","suggestedAction":"Revisar los registros de acceso"}`

var requestCount atomic.Int64

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1beta/models/{call}", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		model, ok := strings.CutSuffix(r.PathValue("call"), ":generateContent")
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "unknown method"}})
			return
		}

		status := respond(w, model)
		logger.Info("model request",
			"count", count,
			"model", model,
			"status", status,
			"has_key", r.Header.Get("x-goog-api-key") != "",
		)
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"total_requests": requestCount.Load()})
	})

	logger.Info("mock model server starting", "port", port,
		"models", []string{"ok", "fenced", "malformed", "slow", "fail", "bad-severity", "blocked"})

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// respond writes the canned answer for model and returns the status code used.
func respond(w http.ResponseWriter, model string) int {
	switch model {
	case "fenced":
		writeJSON(w, http.StatusOK, candidate("```json\n"+validReply+"\n```"))
	case "malformed":
		writeJSON(w, http.StatusOK, candidate("La severidad parece alta, revisa el evento."))
	case "bad-severity":
		writeJSON(w, http.StatusOK, candidate(`{"summary":"x","severity":"SEVERE","suggestedAction":"y"}`))
	case "slow":
		time.Sleep(30 * time.Second)
		writeJSON(w, http.StatusOK, candidate(validReply))
	case "fail":
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]string{"message": "internal error"}})
		return http.StatusInternalServerError
	case "blocked":
		writeJSON(w, http.StatusOK, map[string]any{"promptFeedback": map[string]string{"blockReason": "SAFETY"}})
	default:
		writeJSON(w, http.StatusOK, candidate(validReply))
	}
	return http.StatusOK
}

func candidate(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
