// Package transcribe turns voice messages into text through the OpenAI
// audio transcription API.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kalambet/habitd/internal/fault"
)

// Result is a finished transcription. Language is the ISO 639-1 code the
// model detected, empty when the API did not report one.
type Result struct {
	Text     string
	Language string
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (Result, error)
}

// Whisper is a Transcriber over the go-openai audio endpoint.
type Whisper struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewWhisper creates a Whisper transcriber. An empty apiKey yields
// fault.ErrNotConfigured so the caller can tell the user voice input is
// unavailable instead of erroring mid-delivery.
func NewWhisper(apiKey, model string, timeout time.Duration) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: transcription API key missing", fault.ErrNotConfigured)
	}
	return &Whisper{
		api:     openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}, nil
}

// Transcribe sends the audio payload and returns the recognized text.
// format is the container extension ("ogg", "mp3", "wav") used to name the
// uploaded part.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, format string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("%w: empty audio payload", fault.ErrBadResponse)
	}
	if format == "" {
		format = "ogg"
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "voice." + strings.TrimPrefix(format, "."),
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Result{}, fmt.Errorf("%w: %v", fault.ErrTimeout, err)
		}
		return Result{}, fmt.Errorf("%w: %v", fault.ErrBadResponse, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Result{}, fmt.Errorf("%w: empty transcription", fault.ErrBadResponse)
	}
	return Result{Text: text, Language: resp.Language}, nil
}
