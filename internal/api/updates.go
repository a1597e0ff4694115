// Package api exposes the conversation engine over HTTP. The chat transport
// (webhook relay, polling bridge) lives outside this process and posts each
// delivery to /v1/updates.
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/habitd/internal/engine"
)

const maxUpdateBodySize = 20 << 20 // voice clips arrive base64-encoded

// UpdateRequest is one inbound delivery. Exactly one of text, voice, or
// callback should be set.
type UpdateRequest struct {
	UserID       int64         `json:"user_id"`
	Username     string        `json:"username,omitempty"`
	LanguageHint string        `json:"language_hint,omitempty"`
	Text         string        `json:"text,omitempty"`
	Voice        *VoicePayload `json:"voice,omitempty"`
	Callback     string        `json:"callback,omitempty"`
}

// VoicePayload carries a base64-encoded audio clip.
type VoicePayload struct {
	Data   string `json:"data"`
	Format string `json:"format,omitempty"`
}

// UpdateResponse is the ordered list of replies to deliver back to the user.
type UpdateResponse struct {
	Replies []ReplyPayload `json:"replies"`
}

type ReplyPayload struct {
	Text string `json:"text"`
}

// AppDeps holds the handler dependencies.
type AppDeps struct {
	Engine *engine.Engine
	Token  string
}

// NewAppHandler builds the HTTP surface: health probe plus the
// authenticated updates endpoint.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/v1/updates", handleUpdate(deps))
	})

	return r
}

func handleUpdate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBodySize)
		defer r.Body.Close()

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		upd := engine.Update{
			UserID:       req.UserID,
			Username:     req.Username,
			LanguageHint: req.LanguageHint,
			Text:         req.Text,
			Callback:     req.Callback,
		}
		if req.Voice != nil {
			audio, err := base64.StdEncoding.DecodeString(req.Voice.Data)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid voice data: %v", err)
				return
			}
			upd.Voice = &engine.Voice{Data: audio, Format: req.Voice.Format}
		}

		replies, err := deps.Engine.Handle(r.Context(), upd)
		if err != nil {
			slog.Error("update handling failed", "user_id", req.UserID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to process update")
			return
		}

		resp := UpdateResponse{Replies: make([]ReplyPayload, len(replies))}
		for i, rep := range replies {
			resp.Replies[i] = ReplyPayload{Text: rep.Text}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
