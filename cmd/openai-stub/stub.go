package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type responsesRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Input        string `json:"input"`
}

type anthropicRequest struct {
	Model  string `json:"model"`
	System []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, `{"error":{"message":"messages required"}}`, http.StatusBadRequest)
			return
		}
		var system, user string
		for _, m := range req.Messages {
			if m.Role == "system" {
				system = m.Content
			} else {
				user = m.Content
			}
		}
		if system == "" {
			system, user = unframe(user)
		}
		writeJSON(w, map[string]any{
			"id":     "chatcmpl-stub",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       message{Role: "assistant", Content: reply(system, user)},
				"finish_reason": "stop",
			}},
		})
	})
	mux.HandleFunc("/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"id":     "resp_stub",
			"object": "response",
			"model":  model,
			"status": "completed",
			"output": []map[string]any{{
				"type":   "message",
				"id":     "msg_stub",
				"role":   "assistant",
				"status": "completed",
				"content": []map[string]any{{
					"type":        "output_text",
					"text":        reply(req.Instructions, req.Input),
					"annotations": []any{},
				}},
			}},
		})
	})
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		var system, user string
		for _, s := range req.System {
			system += s.Text
		}
		for _, m := range req.Messages {
			for _, c := range m.Content {
				user += c.Text
			}
		}
		writeJSON(w, map[string]any{
			"id":            "msg_stub",
			"type":          "message",
			"role":          "assistant",
			"model":         model,
			"content":       []map[string]any{{"type": "text", "text": reply(system, user)}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	})
	return mux
}

// reply derives a deterministic post from the request: the first paragraph
// of the content tagged with the transform the instructions ask for.
func reply(system, user string) string {
	mode := "Rewritten"
	lower := strings.ToLower(system + "\n" + user)
	switch {
	case strings.Contains(lower, "shorten") || strings.Contains(lower, "kürz"):
		mode = "Shortened"
	case strings.Contains(lower, "extend") || strings.Contains(lower, "erweiter"):
		mode = "Extended"
	case strings.Contains(lower, "generate") || strings.Contains(lower, "erstell"):
		mode = "Generated"
	}
	first := strings.TrimSpace(user)
	if i := strings.Index(first, "\n\n"); i >= 0 {
		first = strings.TrimSpace(first[:i])
	}
	if len(first) > 280 {
		first = first[:280]
	}
	return fmt.Sprintf("%s post (%d words in): %s", mode, len(strings.Fields(user)), first)
}

// unframe splits a single framed message back into instructions and
// content.
func unframe(msg string) (string, string) {
	const head, mid = "Role and task:\n", "\n\nInformation to process:\n"
	if !strings.HasPrefix(msg, head) {
		return "", msg
	}
	system, user, ok := strings.Cut(strings.TrimPrefix(msg, head), mid)
	if !ok {
		return "", msg
	}
	if i := strings.LastIndex(user, "\n\n"); i >= 0 {
		user = user[:i]
	}
	return system, user
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
