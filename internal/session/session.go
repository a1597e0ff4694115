// Package session holds the per-user conversation state that must survive
// across independent request deliveries.
package session

import (
	"time"

	"github.com/kalambet/habitd/internal/schema"
)

// State is one value from the closed enumeration of conversation states.
type State string

const (
	StateIdle State = "idle"

	StateHabitsAwaitingDate         State = "habits_awaiting_date"
	StateHabitsAwaitingContent      State = "habits_awaiting_content"
	StateHabitsAwaitingConfirmation State = "habits_awaiting_confirmation"

	StateDreamAwaitingContent      State = "dream_awaiting_content"
	StateDreamAwaitingConfirmation State = "dream_awaiting_confirmation"

	StateThoughtAwaitingContent      State = "thought_awaiting_content"
	StateThoughtAwaitingConfirmation State = "thought_awaiting_confirmation"

	StateReflectAnswering            State = "reflect_answering"
	StateReflectAwaitingConfirmation State = "reflect_awaiting_confirmation"

	StateFieldsMenu   State = "config_fields_menu"
	StateFieldsAdd    State = "config_fields_add"
	StateFieldsRemove State = "config_fields_remove"
	StateFieldsImport State = "config_fields_import"

	StateQuestionsMenu   State = "config_questions_menu"
	StateQuestionsAdd    State = "config_questions_add"
	StateQuestionsRemove State = "config_questions_remove"

	StateConfigSheet    State = "config_sheet"
	StateConfigTimezone State = "config_timezone"
	StateConfigLanguage State = "config_language"
	StateConfigReminder State = "config_reminder"
)

// InputType records how the content of a pending entry arrived.
type InputType string

const (
	InputText  InputType = "text"
	InputVoice InputType = "voice"
)

// Reserved pending-entry keys. Everything else in PendingEntry is opaque to
// the engine and keyed by schema field name.
const (
	KeyDate       = schema.ColDate
	KeyTimestamp  = schema.ColTimestamp
	KeyRaw        = schema.ColRaw
	KeyDiary      = schema.ColDiary
	KeyFieldOrder = "field_order"
	KeyInputType  = "input_type"
)

// FieldStage is the explicit stage of the add-field wizard. Stages advance
// strictly in order; numeric stages are skipped for non-numeric kinds.
type FieldStage string

const (
	FieldStageName        FieldStage = "name"
	FieldStageDescription FieldStage = "description"
	FieldStageKind        FieldStage = "kind"
	FieldStageMinimum     FieldStage = "minimum"
	FieldStageMaximum     FieldStage = "maximum"
)

// FieldWizard carries the partially built field definition between turns.
type FieldWizard struct {
	Stage       FieldStage `json:"stage"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Kind        schema.Kind `json:"kind,omitempty"`
	Minimum     *float64   `json:"minimum,omitempty"`
}

// QuestionStage is the explicit stage of the add-question wizard.
type QuestionStage string

const (
	QuestionStageText     QuestionStage = "text"
	QuestionStageLanguage QuestionStage = "language"
)

// QuestionWizard carries the partially built custom question between turns.
type QuestionWizard struct {
	Stage    QuestionStage `json:"stage"`
	Text     string        `json:"text,omitempty"`
	Language string        `json:"language,omitempty"`
}

// TempData is the typed scratch area used by multi-step flows.
type TempData struct {
	// PreviousRaw retains the declined submission's raw input so the next
	// one is extracted as an update rather than losing context.
	PreviousRaw string          `json:"previous_raw_record,omitempty"`
	FieldWizard *FieldWizard    `json:"field_wizard,omitempty"`
	Question    *QuestionWizard `json:"question_wizard,omitempty"`
}

// Session is the ephemeral per-user conversation record.
type Session struct {
	UserID       int64          `json:"user_id"`
	State        State          `json:"state"`
	SelectedDate string         `json:"selected_date,omitempty"` // ISO calendar date
	PendingEntry map[string]any `json:"pending_entry,omitempty"`

	// CurrentQuestionIndex and ReflectionAnswers are transient slots for the
	// older one-question-at-a-time reflection flow; the single-shot
	// extraction path leaves them unused but they stay for compatibility
	// with persisted sessions.
	CurrentQuestionIndex int               `json:"current_question_index,omitempty"`
	ReflectionAnswers    map[string]string `json:"reflection_answers,omitempty"`

	TempData     TempData  `json:"temp_data"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// New creates an idle session for the user.
func New(userID int64, now time.Time, ttl time.Duration) *Session {
	s := &Session{UserID: userID, State: StateIdle, LastActivity: now}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

// IsExpired reports whether the session's idle timeout has elapsed.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Touch refreshes the activity timestamps.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
}

// Reset clears all transient fields and returns the session to idle.
func (s *Session) Reset() {
	s.State = StateIdle
	s.SelectedDate = ""
	s.PendingEntry = nil
	s.CurrentQuestionIndex = 0
	s.ReflectionAnswers = nil
	s.TempData = TempData{}
}
