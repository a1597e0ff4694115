// Package profile holds the durable per-user configuration: destination
// table, customizable record schema, reflection questions, locale, and
// reminder settings.
package profile

import (
	"time"

	"github.com/kalambet/habitd/internal/schema"
)

// CustomQuestion is a user-defined reflection question.
type CustomQuestion struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Active   bool   `json:"active"`
}

// UsageStats counts saved entries per category.
type UsageStats struct {
	Habits      int `json:"habits"`
	Dreams      int `json:"dreams"`
	Thoughts    int `json:"thoughts"`
	Reflections int `json:"reflections"`
}

// Profile is the durable per-user record.
type Profile struct {
	UserID          int64            `json:"user_id"`
	Username        string           `json:"username,omitempty"`
	SheetID         string           `json:"sheet_id,omitempty"`
	SheetURL        string           `json:"sheet_url,omitempty"`
	SheetValidated  bool             `json:"sheet_validated"`
	Schema          schema.Schema    `json:"schema"`
	Questions       []CustomQuestion `json:"questions"`
	Usage           UsageStats       `json:"usage"`
	Language        string           `json:"language"`
	Timezone        string           `json:"timezone"`
	ReminderTime    string           `json:"reminder_time,omitempty"` // "HH:MM" in the user's timezone
	ReminderEnabled bool             `json:"reminder_enabled"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	OnboardingDone  bool             `json:"onboarding_done"`
}

// New creates a profile with an empty schema and defaulted locale. The
// schema starts empty: the engine always works against schema.Resolve, so
// the baked-in defaults apply without being materialized per user.
func New(userID int64, now time.Time) *Profile {
	return &Profile{
		UserID:    userID,
		Language:  "en",
		Timezone:  "UTC",
		Schema:    schema.Schema{Version: 1},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Location resolves the profile timezone, falling back to UTC for an
// unknown or empty name.
func (p *Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ActiveQuestions returns the active questions in declaration order.
func (p *Profile) ActiveQuestions() []CustomQuestion {
	var out []CustomQuestion
	for _, q := range p.Questions {
		if q.Active {
			out = append(out, q)
		}
	}
	return out
}

// defaultQuestions are immutable templates; DefaultQuestions deep-copies
// them so per-user mutation never aliases into the shared set.
var defaultQuestions = map[string][]CustomQuestion{
	"en": {
		{ID: "gratitude", Text: "What are you grateful for today?", Language: "en", Active: true},
		{ID: "focus", Text: "What was the main focus of the day?", Language: "en", Active: true},
		{ID: "improve", Text: "What would you do differently tomorrow?", Language: "en", Active: true},
	},
	"ru": {
		{ID: "gratitude", Text: "За что ты сегодня благодарен?", Language: "ru", Active: true},
		{ID: "focus", Text: "Что было главным фокусом дня?", Language: "ru", Active: true},
		{ID: "improve", Text: "Что завтра сделаешь иначе?", Language: "ru", Active: true},
	},
}

// DefaultQuestions returns a fresh copy of the default question set for the
// language, falling back to English.
func DefaultQuestions(language string) []CustomQuestion {
	src, ok := defaultQuestions[language]
	if !ok {
		src = defaultQuestions["en"]
	}
	out := make([]CustomQuestion, len(src))
	copy(out, src)
	return out
}
