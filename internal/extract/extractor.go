// Package extract turns free-form user text into typed record candidates
// using the chat model, validating everything the model returns against the
// active schema before it reaches the user for confirmation.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/llm"
	"github.com/kalambet/habitd/internal/schema"
)

// Candidate is an extracted record awaiting user confirmation. Raw always
// carries the user's text verbatim. Degraded marks a passthrough candidate
// produced without a configured chat model.
type Candidate struct {
	Fields   map[string]any
	Diary    string
	Raw      string
	Degraded bool
}

// Extractor coordinates prompt construction, the chat call, and boundary
// validation. A nil Chatter is a legal configuration: extraction degrades to
// raw passthrough instead of failing.
type Extractor struct {
	chatter llm.Chatter
}

// New creates an Extractor. chatter may be nil when no chat model is
// configured.
func New(chatter llm.Chatter) *Extractor {
	return &Extractor{chatter: chatter}
}

// Configured reports whether a chat model backs this extractor.
func (e *Extractor) Configured() bool {
	return e.chatter != nil
}

// Entry extracts a typed record from raw against the resolved schema.
// The model never gets authority over the raw text: Raw is always the input
// verbatim, and every typed field passes schema validation before the
// candidate is returned. Timeout and malformed-reply failures surface as
// fault.ErrTimeout and fault.ErrBadResponse.
func (e *Extractor) Entry(ctx context.Context, resolved schema.Schema, raw string) (Candidate, error) {
	raw = strings.TrimSpace(raw)
	if e.chatter == nil {
		return Candidate{Raw: raw, Diary: raw, Degraded: true}, nil
	}

	system, user := entryPrompts(resolved, raw)
	reply, err := e.chatter.Chat(ctx, system, user)
	if err != nil {
		return Candidate{}, fmt.Errorf("entry extraction: %w", err)
	}

	payload, err := decodeObject(reply)
	if err != nil {
		slog.Warn("entry extraction returned malformed JSON", "error", err)
		return Candidate{}, fmt.Errorf("%w: entry extraction: %v", fault.ErrBadResponse, err)
	}

	diary, _ := payload[schema.ColDiary].(string)
	delete(payload, schema.ColDiary)
	delete(payload, schema.ColRaw)

	return Candidate{
		Fields: schema.ValidateRecord(resolved, payload),
		Diary:  strings.TrimSpace(diary),
		Raw:    raw,
	}, nil
}

// Reflection maps one freeform reply onto the question list, returning a
// question-to-answer map with an entry for every question. Without a
// configured model the whole reply is attributed to each question.
func (e *Extractor) Reflection(ctx context.Context, questions []string, reply, language string) (map[string]string, error) {
	reply = strings.TrimSpace(reply)
	if e.chatter == nil {
		return fallbackAnswers(questions, reply), nil
	}

	system, user := reflectionPrompts(questions, reply, language)
	raw, err := e.chatter.Chat(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("reflection extraction: %w", err)
	}

	payload, err := decodeObject(raw)
	if err != nil {
		slog.Warn("reflection extraction returned malformed JSON", "error", err)
		return nil, fmt.Errorf("%w: reflection extraction: %v", fault.ErrBadResponse, err)
	}

	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		if val, ok := payload[q].(string); ok {
			answers[q] = strings.TrimSpace(val)
		} else {
			answers[q] = ""
		}
	}

	// A model that gave up sometimes echoes the entire reply under every
	// question. Treat that the same as no extraction at all.
	if allIdentical(answers, reply) {
		return fallbackAnswers(questions, reply), nil
	}
	return answers, nil
}

// decodeObject parses reply as a JSON object, tolerating prose around the
// braces the way chat models sometimes wrap their output.
func decodeObject(reply string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(reply), &payload); err == nil {
		return payload, nil
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return payload, nil
}

func allIdentical(answers map[string]string, reply string) bool {
	if len(answers) < 2 || reply == "" {
		return false
	}
	for _, a := range answers {
		if a != reply {
			return false
		}
	}
	return true
}

// conjunctionSeparators are tried in order when distributing one reply
// across several questions without a model. Line breaks first, then common
// English and Russian joining words.
var conjunctionSeparators = []string{"\n", ", and ", " and also ", ", а ещё ", ", и ещё ", ", а ", ", и "}

// fallbackAnswers distributes the reply without a model: a conjunction-word
// split when it yields exactly one part per question, otherwise the full
// reply under every question so nothing the user wrote is lost.
func fallbackAnswers(questions []string, reply string) map[string]string {
	answers := make(map[string]string, len(questions))
	parts := splitReply(reply, len(questions))
	for i, q := range questions {
		if parts != nil {
			answers[q] = parts[i]
		} else {
			answers[q] = reply
		}
	}
	return answers
}

func splitReply(reply string, want int) []string {
	for _, sep := range conjunctionSeparators {
		var parts []string
		for _, chunk := range strings.Split(reply, sep) {
			chunk = strings.TrimSpace(chunk)
			if chunk != "" {
				parts = append(parts, chunk)
			}
		}
		if len(parts) == want {
			return parts
		}
	}
	return nil
}
