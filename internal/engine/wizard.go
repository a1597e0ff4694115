package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/schema"
	"github.com/kalambet/habitd/internal/session"
)

func (t *turn) handleFields(text string) {
	switch t.sess.State {
	case session.StateFieldsMenu:
		switch strings.ToLower(text) {
		case "add":
			t.sess.State = session.StateFieldsAdd
			t.sess.TempData.FieldWizard = &session.FieldWizard{Stage: session.FieldStageName}
			t.say("field_name")
		case "remove":
			t.sess.State = session.StateFieldsRemove
			t.say("field_remove")
		case "import":
			t.sess.State = session.StateFieldsImport
			t.say("field_import")
		case "reset":
			t.prof.Schema = schema.Schema{}
			t.profileDirty = true
			t.say("fields_reset")
			t.say("fields_menu", t.fieldList())
		case "done":
			t.sess.Reset()
			t.say("menu_done")
		default:
			t.say("fields_hint")
		}
	case session.StateFieldsAdd:
		t.handleFieldWizard(text)
	case session.StateFieldsRemove:
		t.handleFieldRemove(text)
	case session.StateFieldsImport:
		t.handleFieldImport(text)
	}
}

// handleFieldWizard advances the 5-stage add-field sequence. A validation
// failure re-prompts the current stage without losing prior answers.
func (t *turn) handleFieldWizard(text string) {
	w := t.sess.TempData.FieldWizard
	if w == nil {
		w = &session.FieldWizard{Stage: session.FieldStageName}
		t.sess.TempData.FieldWizard = w
	}

	switch w.Stage {
	case session.FieldStageName:
		name := strings.ToLower(strings.TrimSpace(text))
		if err := schema.ValidateField(name, schema.Field{Kind: schema.KindText}, schema.Resolve(t.prof.Schema)); err != nil {
			t.sayValidation(err)
			t.say("field_name")
			return
		}
		w.Name = name
		w.Stage = session.FieldStageDescription
		t.say("field_desc")

	case session.FieldStageDescription:
		w.Description = strings.TrimSpace(text)
		w.Stage = session.FieldStageKind
		t.say("field_kind")

	case session.FieldStageKind:
		kind, ok := schema.NormalizeKind(strings.TrimSpace(text))
		if !ok {
			t.say("field_kind")
			return
		}
		w.Kind = kind
		// Bounds only apply to numeric kinds.
		if kind == schema.KindInteger || kind == schema.KindReal {
			w.Stage = session.FieldStageMinimum
			t.say("field_min")
			return
		}
		t.finishFieldWizard(w, nil)

	case session.FieldStageMinimum:
		if isSkip(text) {
			w.Stage = session.FieldStageMaximum
			t.say("field_max")
			return
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			t.say("field_min")
			return
		}
		w.Minimum = &v
		w.Stage = session.FieldStageMaximum
		t.say("field_max")

	case session.FieldStageMaximum:
		if isSkip(text) {
			t.finishFieldWizard(w, nil)
			return
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			t.say("field_max")
			return
		}
		t.finishFieldWizard(w, &v)
	}
}

func (t *turn) finishFieldWizard(w *session.FieldWizard, max *float64) {
	def := schema.Field{
		Kind:        w.Kind,
		Description: w.Description,
		Minimum:     w.Minimum,
		Maximum:     max,
	}
	if err := schema.ValidateField(w.Name, def, schema.Resolve(t.prof.Schema)); err != nil {
		t.sayValidation(err)
		if def.Numeric() {
			w.Stage = session.FieldStageMinimum
			t.say("field_min")
		} else {
			w.Stage = session.FieldStageName
			t.say("field_name")
		}
		return
	}

	if t.prof.Schema.Fields == nil {
		t.prof.Schema.Fields = make(map[string]schema.Field)
	}
	t.prof.Schema.Fields[w.Name] = def
	t.profileDirty = true

	t.sess.TempData.FieldWizard = nil
	t.sess.State = session.StateFieldsMenu
	t.say("field_added", w.Name)
	t.say("fields_menu", t.fieldList())
}

func (t *turn) handleFieldRemove(text string) {
	name := strings.ToLower(strings.TrimSpace(text))
	if _, ok := t.prof.Schema.Fields[name]; ok {
		delete(t.prof.Schema.Fields, name)
		t.profileDirty = true
		t.sess.State = session.StateFieldsMenu
		t.say("field_removed", name)
		t.say("fields_menu", t.fieldList())
		return
	}
	if _, ok := schema.Default().Fields[name]; ok {
		t.say("field_default", name)
		return
	}
	t.say("field_unknown", name)
}

// handleFieldImport runs the best-effort batch path: partially invalid
// batches report per-field outcomes instead of failing outright. Only
// input that isn't JSON at all re-prompts.
func (t *turn) handleFieldImport(text string) {
	res, err := schema.ImportBatch(text, &t.prof.Schema)
	if err != nil {
		t.sayValidation(err)
		t.say("field_import")
		return
	}

	if len(res.Added) > 0 {
		t.profileDirty = true
	}
	added := strings.Join(res.Added, ", ")
	if added == "" {
		added = msg(t.lang(), "import_none")
	}
	var skipped []string
	for name, reason := range res.Skipped {
		skipped = append(skipped, fmt.Sprintf("%s (%s)", name, reason))
	}
	skippedText := strings.Join(skipped, ", ")
	if skippedText == "" {
		skippedText = msg(t.lang(), "import_none")
	}

	t.sess.State = session.StateFieldsMenu
	t.say("import_result", added, skippedText)
	t.say("fields_menu", t.fieldList())
}

func (t *turn) handleQuestions(text string) {
	switch t.sess.State {
	case session.StateQuestionsMenu:
		switch strings.ToLower(text) {
		case "add":
			t.sess.State = session.StateQuestionsAdd
			t.sess.TempData.Question = &session.QuestionWizard{Stage: session.QuestionStageText}
			t.say("question_text")
		case "remove":
			t.sess.State = session.StateQuestionsRemove
			t.say("question_remove")
		case "reset":
			t.prof.Questions = profile.DefaultQuestions(t.prof.Language)
			t.profileDirty = true
			t.say("questions_reset")
			t.say("questions_menu", t.questionList())
		case "done":
			t.sess.Reset()
			t.say("menu_done")
		default:
			t.say("questions_hint")
		}
	case session.StateQuestionsAdd:
		t.handleQuestionWizard(text)
	case session.StateQuestionsRemove:
		t.handleQuestionRemove(text)
	}
}

func (t *turn) handleQuestionWizard(text string) {
	w := t.sess.TempData.Question
	if w == nil {
		w = &session.QuestionWizard{Stage: session.QuestionStageText}
		t.sess.TempData.Question = w
	}

	switch w.Stage {
	case session.QuestionStageText:
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			t.say("question_text")
			return
		}
		w.Text = trimmed
		w.Stage = session.QuestionStageLanguage
		t.say("question_lang")

	case session.QuestionStageLanguage:
		lang := strings.ToLower(strings.TrimSpace(text))
		if isSkip(lang) {
			lang = t.prof.Language
		}
		if lang != "en" && lang != "ru" {
			t.say("question_lang")
			return
		}
		t.prof.Questions = append(t.prof.Questions, profile.CustomQuestion{
			ID:       uuid.NewString(),
			Text:     w.Text,
			Language: lang,
			Active:   true,
		})
		t.profileDirty = true
		t.sess.TempData.Question = nil
		t.sess.State = session.StateQuestionsMenu
		t.say("question_added")
		t.say("questions_menu", t.questionList())
	}
}

func (t *turn) handleQuestionRemove(text string) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	active := t.prof.ActiveQuestions()
	if err != nil || n < 1 || n > len(active) {
		t.say("question_bad")
		return
	}

	target := active[n-1].ID
	for i, q := range t.prof.Questions {
		if q.ID == target {
			t.prof.Questions = append(t.prof.Questions[:i], t.prof.Questions[i+1:]...)
			break
		}
	}
	t.profileDirty = true
	t.sess.State = session.StateQuestionsMenu
	t.say("question_gone")
	t.say("questions_menu", t.questionList())
}

func (t *turn) sayValidation(err error) {
	var verr *fault.ValidationError
	if errors.As(err, &verr) {
		t.sayText("⚠ " + verr.Reason)
		return
	}
	t.sayText("⚠ " + err.Error())
}

func (t *turn) fieldList() string {
	resolved := schema.Resolve(t.prof.Schema)
	var sb strings.Builder
	for _, name := range resolved.FieldOrder() {
		f := resolved.Fields[name]
		fmt.Fprintf(&sb, "- %s (%s)", name, f.Kind)
		if _, custom := t.prof.Schema.Fields[name]; !custom {
			sb.WriteString(" *")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *turn) questionList() string {
	active := t.prof.ActiveQuestions()
	if len(active) == 0 {
		return msg(t.lang(), "import_none") + "\n"
	}
	var sb strings.Builder
	for i, q := range active {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q.Text)
	}
	return sb.String()
}

func isSkip(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "skip", "-", "пропустить":
		return true
	}
	return false
}
