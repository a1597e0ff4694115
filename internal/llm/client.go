// Package llm talks to an OpenAI-compatible chat completion endpoint.
// The default deployment routes through OpenRouter, so any model the
// gateway exposes can serve extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kalambet/habitd/internal/fault"
)

// Chatter produces one structured completion for a system/user prompt pair.
// The reply is expected to be a single JSON object.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Client is a Chatter over the go-openai SDK.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New creates a Client. baseURL may point at any OpenAI-compatible gateway;
// an empty apiKey yields fault.ErrNotConfigured so callers can degrade
// instead of failing later mid-conversation.
func New(apiKey, baseURL, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: chat API key missing", fault.ErrNotConfigured)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Chat sends one completion request in JSON mode and returns the raw reply
// content. Errors carry the fault kind: fault.ErrTimeout when the call ran
// out of time, fault.ErrBadResponse for everything the model or gateway got
// wrong.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices", fault.ErrBadResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion", fault.ErrBadResponse)
	}
	return content, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", fault.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", fault.ErrBadResponse, err)
}
