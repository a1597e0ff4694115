package extract

import (
	"fmt"
	"strings"

	"github.com/kalambet/habitd/internal/schema"
)

const entrySystemPrompt = `You are a structured data extractor for daily diary and habit records. Given the user's free-form description of their day (any language), your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

Rules:
- Preserve the user's language in text fields.
- Put a cleaned-up diary narrative of the day under the "diary" key.
- Only include fields defined in the schema below; omit anything else.
- If a value is not inferable from the text, use null.
- Never invent values the user did not state.`

const reflectionSystemPrompt = `You are a concise extractor that maps a user's reflection message to answers for given questions. Your output must be ONLY a single valid JSON object where each key is exactly the question text and each value is a short answer string (empty string if no answer found). If the user answers multiple questions in one message, split the content appropriately between questions. Keep the user's language and tone. Do not add extra keys or explanations.`

// entryPrompts renders the system and user prompts for record extraction
// against the resolved schema.
func entryPrompts(resolved schema.Schema, raw string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(entrySystemPrompt)
	sb.WriteString("\n\nSchema fields:\n")
	for _, name := range resolved.FieldOrder() {
		f := resolved.Fields[name]
		fmt.Fprintf(&sb, "- %s (%s", name, f.Kind)
		if f.Nullable {
			sb.WriteString(", nullable")
		}
		if f.Minimum != nil {
			fmt.Fprintf(&sb, ", min %v", *f.Minimum)
		}
		if f.Maximum != nil {
			fmt.Fprintf(&sb, ", max %v", *f.Maximum)
		}
		sb.WriteString(")")
		if f.Description != "" {
			fmt.Fprintf(&sb, ": %s", f.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String(), raw
}

// reflectionPrompts renders the prompts for mapping one freeform reply onto
// the active question list.
func reflectionPrompts(questions []string, reply, language string) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\nQuestions:\n", language)
	for _, q := range questions {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	fmt.Fprintf(&sb, "User reply:\n%s\n", reply)
	sb.WriteString("Return only the JSON object mapping each question text to its answer.")
	return reflectionSystemPrompt, sb.String()
}
