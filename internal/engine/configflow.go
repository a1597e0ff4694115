package engine

import (
	"log/slog"
	"strings"
	"time"
)

func (t *turn) handleSheetInput(text string) {
	id, url := parseSheetRef(text)
	if id == "" {
		t.say("sheet_prompt")
		return
	}

	// Provisioning doubles as the access check: a sheet we cannot read or
	// write fails here, before anything is saved.
	ctx, cancel := t.opCtx()
	defer cancel()
	if err := t.e.writer.EnsureTabs(ctx, id); err != nil {
		t.sayWriteFault(err)
		return
	}

	t.prof.SheetID = id
	t.prof.SheetURL = url
	t.prof.SheetValidated = true
	t.profileDirty = true
	t.sess.Reset()
	t.say("sheet_saved")
}

// parseSheetRef accepts a bare document id or a URL carrying one under the
// /d/ path segment.
func parseSheetRef(text string) (id, url string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	if !strings.Contains(text, "://") {
		return text, ""
	}

	parts := strings.Split(text, "/")
	for i, part := range parts {
		if part == "d" && i+1 < len(parts) {
			return parts[i+1], text
		}
	}
	return "", ""
}

func (t *turn) handleTimezoneInput(text string) {
	tz := strings.TrimSpace(text)
	if _, err := time.LoadLocation(tz); err != nil {
		t.say("timezone_bad")
		return
	}
	t.prof.Timezone = tz
	t.profileDirty = true
	t.sess.Reset()
	t.say("timezone_saved", tz)
}

func (t *turn) handleReminderInput(text string) {
	raw := strings.ToLower(strings.TrimSpace(text))
	if raw == "off" || raw == "выкл" {
		t.prof.ReminderEnabled = false
		t.profileDirty = true
		t.sess.Reset()
		t.say("reminder_off")
		return
	}

	if _, err := time.Parse("15:04", raw); err != nil {
		t.say("reminder_bad")
		return
	}
	t.prof.ReminderTime = raw
	t.prof.ReminderEnabled = true
	t.profileDirty = true
	t.sess.Reset()

	if t.e.scheduler != nil {
		if err := t.e.scheduler.Schedule(t.prof, t.now); err != nil {
			slog.Warn("scheduling reminder failed", "user_id", t.prof.UserID, "error", err)
		}
	}
	t.say("reminder_saved", raw)
}

func (t *turn) handleLanguageInput(text string) {
	lang := strings.ToLower(strings.TrimSpace(text))
	if lang != "en" && lang != "ru" {
		t.say("language_prompt")
		return
	}
	t.prof.Language = lang
	t.profileDirty = true
	t.sess.Reset()
	t.say("language_saved")
}
