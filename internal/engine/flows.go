package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/schema"
	"github.com/kalambet/habitd/internal/session"
	"github.com/kalambet/habitd/internal/tabular"
)

// updateMarker joins a declined submission's raw text with its replacement
// so extraction sees the correction in context.
const updateMarker = "[Update]"

func (t *turn) handleDateInput(text string) {
	date, ok := parseDate(text, t.now.In(t.prof.Location()))
	if !ok {
		t.say("bad_date")
		return
	}
	t.sess.SelectedDate = date
	t.sess.State = session.StateHabitsAwaitingContent
	t.say("describe_day", date)
}

func (t *turn) handleContent(text string, input session.InputType, cat tabular.Category, confirmState session.State) {
	if text == "" {
		t.say("bad_response")
		return
	}
	if t.prof.SheetID == "" {
		t.say("sheet_missing")
		t.sess.Reset()
		return
	}

	raw := text
	if prev := t.sess.TempData.PreviousRaw; prev != "" {
		raw = prev + "\n" + updateMarker + "\n" + text
	}

	resolved := schema.Resolve(t.prof.Schema)
	ctx, cancel := t.opCtx()
	defer cancel()
	cand, err := t.e.extractor.Entry(ctx, resolved, raw)
	if err != nil {
		// State does not advance past the point of failure; the same or a
		// rephrased submission is accepted on the next turn.
		t.sayFault(err)
		return
	}
	if cand.Degraded {
		t.say("llm_disabled")
	}

	entry := map[string]any{
		session.KeyTimestamp: t.now.UTC().Format(time.RFC3339),
		session.KeyRaw:       cand.Raw,
		session.KeyDiary:     cand.Diary,
		session.KeyInputType: string(input),
	}
	switch cat {
	case tabular.Habits:
		entry[session.KeyDate] = t.sess.SelectedDate
	case tabular.Dreams:
		entry[session.KeyDate] = t.now.In(t.prof.Location()).Format(isoDate)
	}
	for k, v := range cand.Fields {
		entry[k] = v
	}

	t.sess.PendingEntry = entry
	t.sess.TempData.PreviousRaw = ""
	t.sess.State = confirmState
	t.say("confirm_entry", previewEntry(entry))
}

func (t *turn) handleConfirmation(text string, cat tabular.Category, contentState session.State) {
	switch {
	case isYes(text):
		t.commit(cat)
	case isNo(text):
		// Keep the declined raw input so the resubmission extracts as an
		// update instead of losing context.
		raw, _ := t.sess.PendingEntry[session.KeyRaw].(string)
		t.sess.TempData.PreviousRaw = raw
		t.sess.PendingEntry = nil
		t.sess.State = contentState
		t.say("resubmit")
	default:
		t.say("confirm_hint")
	}
}

// commit writes the pending entry through the table writer. Every outcome
// resets the session: success obviously, and recoverable write failures too
// so the user re-submits instead of retrying against stuck state.
func (t *turn) commit(cat tabular.Category) {
	entry := t.sess.PendingEntry
	if entry == nil {
		t.sess.Reset()
		t.say("error_generic")
		return
	}
	if t.prof.SheetID == "" {
		t.sess.Reset()
		t.say("sheet_missing")
		return
	}

	rec := recordFromEntry(entry)
	var fieldOrder []string
	if cat == tabular.Habits {
		fieldOrder = schema.Resolve(t.prof.Schema).FieldOrder()
	}

	ctx, cancel := t.opCtx()
	defer cancel()
	err := t.e.writer.Append(ctx, t.prof.SheetID, cat, fieldOrder, rec)
	t.sess.Reset()
	if err != nil {
		slog.Error("table append failed", "user_id", t.sess.UserID, "category", cat, "error", err)
		t.sayWriteFault(err)
		return
	}

	t.bumpUsage(cat)
	t.say("saved")
}

func (t *turn) bumpUsage(cat tabular.Category) {
	switch cat {
	case tabular.Habits:
		t.prof.Usage.Habits++
	case tabular.Dreams:
		t.prof.Usage.Dreams++
	case tabular.Thoughts:
		t.prof.Usage.Thoughts++
	case tabular.Reflections:
		t.prof.Usage.Reflections++
	}
	t.profileDirty = true
}

func (t *turn) startReflect() {
	if len(t.prof.ActiveQuestions()) == 0 {
		t.prof.Questions = append(t.prof.Questions, profile.DefaultQuestions(t.prof.Language)...)
		t.profileDirty = true
		t.say("reflect_seeded")
	}

	t.sess.Reset()
	t.sess.State = session.StateReflectAnswering

	var sb strings.Builder
	for i, q := range t.prof.ActiveQuestions() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q.Text)
	}
	t.say("reflect_intro", strings.TrimRight(sb.String(), "\n"))
}

func (t *turn) handleReflectAnswer(text string) {
	if text == "" {
		t.say("bad_response")
		return
	}
	questions := t.prof.ActiveQuestions()
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}

	ctx, cancel := t.opCtx()
	defer cancel()
	answers, err := t.e.extractor.Reflection(ctx, texts, text, t.prof.Language)
	if err != nil {
		// Stay in the answering state so the same reply works on retry.
		t.sayFault(err)
		return
	}

	t.sess.ReflectionAnswers = answers
	t.sess.PendingEntry = map[string]any{
		session.KeyDate: t.now.In(t.prof.Location()).Format(isoDate),
		session.KeyRaw:  text,
	}
	t.sess.State = session.StateReflectAwaitingConfirmation

	var sb strings.Builder
	for _, q := range texts {
		fmt.Fprintf(&sb, "%s\n— %s\n", q, answers[q])
	}
	t.say("reflect_preview", strings.TrimRight(sb.String(), "\n"))
}

func (t *turn) handleReflectConfirmation(text string) {
	switch {
	case isYes(text):
		if t.prof.SheetID == "" {
			t.sess.Reset()
			t.say("sheet_missing")
			return
		}
		encoded, err := json.Marshal(t.sess.ReflectionAnswers)
		if err != nil {
			t.sess.Reset()
			t.say("error_generic")
			return
		}
		date, _ := t.sess.PendingEntry[session.KeyDate].(string)
		rec := tabular.Record{
			Date:   date,
			Fields: map[string]any{"answers": string(encoded)},
		}

		ctx, cancel := t.opCtx()
		defer cancel()
		err = t.e.writer.Append(ctx, t.prof.SheetID, tabular.Reflections, nil, rec)
		t.sess.Reset()
		if err != nil {
			slog.Error("reflection append failed", "user_id", t.sess.UserID, "error", err)
			t.sayWriteFault(err)
			return
		}
		t.bumpUsage(tabular.Reflections)
		t.say("saved")
	case isNo(text):
		t.sess.ReflectionAnswers = nil
		t.sess.PendingEntry = nil
		t.sess.State = session.StateReflectAnswering
		t.say("resubmit")
	default:
		t.say("confirm_hint")
	}
}

// sayFault maps an extraction or transcription failure onto a user message.
func (t *turn) sayFault(err error) {
	switch {
	case errors.Is(err, fault.ErrTimeout):
		t.say("timeout_retry")
	case errors.Is(err, fault.ErrBadResponse):
		t.say("bad_response")
	case errors.Is(err, fault.ErrNotConfigured):
		t.say("llm_disabled")
	default:
		t.say("error_generic")
	}
}

// sayWriteFault maps a table write failure onto a user message.
func (t *turn) sayWriteFault(err error) {
	switch {
	case errors.Is(err, fault.ErrNotConfigured):
		t.say("sheet_missing")
	case errors.Is(err, fault.ErrAccessDenied):
		t.say("access_denied")
	case errors.Is(err, fault.ErrTimeout):
		t.say("timeout_retry")
	default:
		t.say("write_failed")
	}
}

// recordFromEntry splits the pending entry's reserved keys from the
// schema-keyed extras.
func recordFromEntry(entry map[string]any) tabular.Record {
	rec := tabular.Record{Fields: make(map[string]any, len(entry))}
	for k, v := range entry {
		switch k {
		case session.KeyDate:
			rec.Date, _ = v.(string)
		case session.KeyTimestamp:
			if s, ok := v.(string); ok {
				rec.Timestamp, _ = time.Parse(time.RFC3339, s)
			}
		case session.KeyRaw:
			rec.Raw, _ = v.(string)
		case session.KeyDiary:
			rec.Diary, _ = v.(string)
		case session.KeyInputType, session.KeyFieldOrder:
			// bookkeeping keys, not columns
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}

// previewEntry renders the candidate for the confirmation message.
func previewEntry(entry map[string]any) string {
	shown := make(map[string]any, len(entry))
	for k, v := range entry {
		if k == session.KeyInputType || k == session.KeyTimestamp {
			continue
		}
		shown[k] = v
	}
	encoded, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		return fmt.Sprint(shown)
	}
	return string(encoded)
}
