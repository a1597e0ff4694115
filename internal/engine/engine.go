// Package engine is the per-user conversation state machine. It decides what
// input is expected next, runs extraction at the right point, and only hands
// a record to the table writer after an explicit confirmation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/habitd/internal/extract"
	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/session"
	"github.com/kalambet/habitd/internal/tabular"
	"github.com/kalambet/habitd/internal/transcribe"
)

// Voice is an inbound voice clip.
type Voice struct {
	Data   []byte
	Format string
}

// Update is one inbound delivery: exactly one of Text, Voice, or Callback
// carries the user's input.
type Update struct {
	UserID       int64
	Username     string
	LanguageHint string // client locale hint, only consulted before onboarding
	Text         string
	Voice        *Voice
	Callback     string
}

// Reply is one outbound message produced by a turn.
type Reply struct {
	Text string
}

// TableWriter is the engine's view of the table layer.
type TableWriter interface {
	EnsureTabs(ctx context.Context, docID string) error
	Append(ctx context.Context, docID string, cat tabular.Category, fieldOrder []string, rec tabular.Record) error
}

// Scheduler enqueues the next reminder dispatch for a profile.
type Scheduler interface {
	Schedule(prof *profile.Profile, now time.Time) error
}

// Config bounds the engine's time behavior.
type Config struct {
	SessionTTL       time.Duration
	OperationTimeout time.Duration
}

// Engine processes one update at a time per user. It holds no per-user
// state of its own; everything lives in the session and profile stores.
type Engine struct {
	sessions    session.Store
	profiles    profile.Store
	extractor   *extract.Extractor
	transcriber transcribe.Transcriber // nil when voice is not configured
	writer      TableWriter
	scheduler   Scheduler // nil when reminder delivery is not configured
	clock       session.Clock
	cfg         Config
}

// SetScheduler enables reminder enqueueing. Without one, reminder settings
// are still stored but no job is scheduled.
func (e *Engine) SetScheduler(s Scheduler) {
	e.scheduler = s
}

// New creates an Engine. transcriber may be nil.
func New(sessions session.Store, profiles profile.Store, ex *extract.Extractor, tr transcribe.Transcriber, w TableWriter, cfg Config) *Engine {
	return NewWithClock(sessions, profiles, ex, tr, w, cfg, session.RealClock())
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(sessions session.Store, profiles profile.Store, ex *extract.Extractor, tr transcribe.Transcriber, w TableWriter, cfg Config, clock session.Clock) *Engine {
	return &Engine{
		sessions:    sessions,
		profiles:    profiles,
		extractor:   ex,
		transcriber: tr,
		writer:      w,
		clock:       clock,
		cfg:         cfg,
	}
}

// turn carries one update's working state through the handlers. Handlers
// mutate the session and profile in memory; Handle persists both at the end
// of the turn so a mid-turn failure never leaves a half-advanced session.
type turn struct {
	e            *Engine
	ctx          context.Context
	now          time.Time
	sess         *session.Session
	prof         *profile.Profile
	profileDirty bool
	replies      []Reply
}

func (t *turn) lang() string { return t.prof.Language }

func (t *turn) say(key string, args ...any) {
	t.replies = append(t.replies, Reply{Text: msg(t.lang(), key, args...)})
}

func (t *turn) sayText(text string) {
	t.replies = append(t.replies, Reply{Text: text})
}

// opCtx bounds a single external call.
func (t *turn) opCtx() (context.Context, context.CancelFunc) {
	if t.e.cfg.OperationTimeout <= 0 {
		return t.ctx, func() {}
	}
	return context.WithTimeout(t.ctx, t.e.cfg.OperationTimeout)
}

// Handle processes one inbound update and returns the replies to deliver.
// An expired or missing session transparently restarts as idle. Session and
// profile writes are the last actions of the turn.
func (e *Engine) Handle(ctx context.Context, upd Update) ([]Reply, error) {
	now := e.clock.Now()

	sess, err := e.sessions.Get(ctx, upd.UserID)
	if errors.Is(err, fault.ErrNotFound) {
		sess = session.New(upd.UserID, now, e.cfg.SessionTTL)
	} else if err != nil {
		return nil, err
	}

	prof, err := profile.GetOrCreate(ctx, e.profiles, upd.UserID)
	if err != nil {
		return nil, err
	}

	t := &turn{e: e, ctx: ctx, now: now, sess: sess, prof: prof}

	if upd.Username != "" && prof.Username != upd.Username {
		prof.Username = upd.Username
		t.profileDirty = true
	}
	if !prof.OnboardingDone && strings.HasPrefix(strings.ToLower(upd.LanguageHint), "ru") && prof.Language != "ru" {
		prof.Language = "ru"
		t.profileDirty = true
	}

	switch {
	case upd.Voice != nil:
		t.handleVoice(upd.Voice)
	case upd.Callback != "":
		t.dispatch(upd.Callback, session.InputText)
	default:
		t.dispatch(upd.Text, session.InputText)
	}

	sess.Touch(now, e.cfg.SessionTTL)
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	if t.profileDirty {
		if err := e.profiles.Save(ctx, prof); err != nil {
			return nil, err
		}
	}
	return t.replies, nil
}

func (t *turn) handleVoice(v *Voice) {
	if t.e.transcriber == nil {
		t.say("voice_disabled")
		return
	}

	ctx, cancel := t.opCtx()
	defer cancel()
	res, err := t.e.transcriber.Transcribe(ctx, v.Data, v.Format)
	if err != nil {
		slog.Warn("transcription failed", "user_id", t.sess.UserID, "error", err)
		switch {
		case errors.Is(err, fault.ErrTimeout):
			t.say("timeout_retry")
		case errors.Is(err, fault.ErrNotConfigured):
			t.say("voice_disabled")
		default:
			t.say("bad_response")
		}
		return
	}
	t.dispatch(res.Text, session.InputVoice)
}

func (t *turn) dispatch(text string, input session.InputType) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		t.command(strings.ToLower(trimmed))
		return
	}

	switch t.sess.State {
	case session.StateIdle:
		t.say("idle_hint")

	case session.StateHabitsAwaitingDate:
		t.handleDateInput(trimmed)
	case session.StateHabitsAwaitingContent:
		t.handleContent(trimmed, input, tabular.Habits, session.StateHabitsAwaitingConfirmation)
	case session.StateHabitsAwaitingConfirmation:
		t.handleConfirmation(trimmed, tabular.Habits, session.StateHabitsAwaitingContent)

	case session.StateDreamAwaitingContent:
		t.handleContent(trimmed, input, tabular.Dreams, session.StateDreamAwaitingConfirmation)
	case session.StateDreamAwaitingConfirmation:
		t.handleConfirmation(trimmed, tabular.Dreams, session.StateDreamAwaitingContent)

	case session.StateThoughtAwaitingContent:
		t.handleContent(trimmed, input, tabular.Thoughts, session.StateThoughtAwaitingConfirmation)
	case session.StateThoughtAwaitingConfirmation:
		t.handleConfirmation(trimmed, tabular.Thoughts, session.StateThoughtAwaitingContent)

	case session.StateReflectAnswering:
		t.handleReflectAnswer(trimmed)
	case session.StateReflectAwaitingConfirmation:
		t.handleReflectConfirmation(trimmed)

	case session.StateFieldsMenu, session.StateFieldsAdd, session.StateFieldsRemove, session.StateFieldsImport:
		t.handleFields(trimmed)
	case session.StateQuestionsMenu, session.StateQuestionsAdd, session.StateQuestionsRemove:
		t.handleQuestions(trimmed)

	case session.StateConfigSheet:
		t.handleSheetInput(trimmed)
	case session.StateConfigTimezone:
		t.handleTimezoneInput(trimmed)
	case session.StateConfigLanguage:
		t.handleLanguageInput(trimmed)
	case session.StateConfigReminder:
		t.handleReminderInput(trimmed)

	default:
		slog.Warn("unknown session state", "user_id", t.sess.UserID, "state", t.sess.State)
		t.sess.Reset()
		t.say("error_generic")
	}
}

func (t *turn) command(cmd string) {
	// A flow-entry command clears any stale pending entry from a previous,
	// possibly abandoned flow.
	switch cmd {
	case "/start":
		if !t.prof.OnboardingDone {
			t.prof.OnboardingDone = true
			t.profileDirty = true
		}
		t.sess.Reset()
		t.say("welcome")
	case "/help":
		t.say("help")
	case "/habits":
		t.sess.Reset()
		t.sess.State = session.StateHabitsAwaitingDate
		t.say("select_date")
	case "/dream":
		t.sess.Reset()
		t.sess.State = session.StateDreamAwaitingContent
		t.say("dream_prompt")
	case "/thought":
		t.sess.Reset()
		t.sess.State = session.StateThoughtAwaitingContent
		t.say("thought_prompt")
	case "/reflect":
		t.startReflect()
	case "/fields":
		t.sess.Reset()
		t.sess.State = session.StateFieldsMenu
		t.say("fields_menu", t.fieldList())
	case "/questions":
		t.sess.Reset()
		t.sess.State = session.StateQuestionsMenu
		t.say("questions_menu", t.questionList())
	case "/sheet":
		t.sess.Reset()
		t.sess.State = session.StateConfigSheet
		t.say("sheet_prompt")
	case "/timezone":
		t.sess.Reset()
		t.sess.State = session.StateConfigTimezone
		t.say("timezone_prompt")
	case "/language":
		t.sess.Reset()
		t.sess.State = session.StateConfigLanguage
		t.say("language_prompt")
	case "/reminder":
		t.sess.Reset()
		t.sess.State = session.StateConfigReminder
		t.say("reminder_prompt")
	case "/cancel":
		if t.sess.State == session.StateIdle {
			t.say("nothing_cancel")
			return
		}
		t.sess.Reset()
		t.say("cancelled")
	default:
		t.say("unknown_command")
	}
}

func isYes(text string) bool {
	switch strings.ToLower(text) {
	case "yes", "y", "да":
		return true
	}
	return false
}

func isNo(text string) bool {
	switch strings.ToLower(text) {
	case "no", "n", "нет":
		return true
	}
	return false
}
