package engine

import "fmt"

// messagesEN and messagesRU are the user-facing message catalogs. Every
// reply the engine produces goes through msg() so the two stay in lockstep.
var messagesEN = map[string]string{
	"welcome":         "Hello! I'll help you keep a diary and track habits. Try /habits, /dream, /thought or /reflect. See /help for everything else.",
	"help":            "Commands:\n/habits — log your day\n/dream — log a dream\n/thought — capture a thought\n/reflect — answer your reflection questions\n/fields — customize habit fields\n/questions — manage reflection questions\n/sheet — connect a spreadsheet\n/timezone — set your timezone\n/language — switch language\n/reminder — daily check-in reminder\n/cancel — abort the current flow",
	"idle_hint":       "I'm not sure what you mean. Try /habits to log your day, or /help for the full list.",
	"select_date":     "Which date do you want to record? Reply with today, yesterday, YYYY-MM-DD or dd.mm.yyyy.",
	"bad_date":        "I couldn't read that date. Use today, yesterday, YYYY-MM-DD or dd.mm.yyyy.",
	"describe_day":    "Describe your day for %s using text or voice.",
	"dream_prompt":    "Tell me about your dream.",
	"thought_prompt":  "What's on your mind?",
	"confirm_entry":   "Review and confirm:\n\n%s\n\nReply yes to save or no to revise.",
	"confirm_hint":    "Please reply yes or no.",
	"resubmit":        "Okay, tell me again — I'll treat it as an update to what you already wrote.",
	"saved":           "✅ Saved!",
	"cancelled":       "✖ Cancelled.",
	"nothing_cancel":  "Nothing to cancel.",
	"error_generic":   "⚠ An error occurred. Please try again.",
	"sheet_missing":   "⚠ Please connect a spreadsheet first via /sheet.",
	"llm_disabled":    "Summarization is disabled — I'll save your text as-is.",
	"voice_disabled":  "Voice transcription isn't configured. Please type your message.",
	"timeout_retry":   "⏳ That took too long. Please try again shortly.",
	"bad_response":    "Something about your input confused me. Could you rephrase it?",
	"access_denied":   "I can't write to your spreadsheet. Please grant write access and try again.",
	"write_failed":    "⚠ Writing to your spreadsheet failed. Please try again.",
	"reflect_seeded":  "I've added a starter set of reflection questions. Change them any time via /questions.",
	"reflect_intro":   "Answer these in one message — I'll sort it out:\n%s",
	"reflect_preview": "Here's how I split your answers:\n\n%s\n\nReply yes to save or no to answer again.",
	"fields_menu":     "Your habit fields:\n%s\nReply add, remove, import, reset or done.",
	"fields_hint":     "Reply add, remove, import, reset or done.",
	"field_name":      "Name of the new field? Lowercase with underscores, e.g. water_glasses.",
	"field_desc":      "Describe the field so extraction knows what to look for.",
	"field_kind":      "What kind of value? One of: text, integer, real, boolean.",
	"field_min":       "Minimum value? Reply a number or skip.",
	"field_max":       "Maximum value? Reply a number or skip.",
	"field_added":     "Field %s added.",
	"field_removed":   "Field %s removed. Its spreadsheet column stays; new rows leave it blank.",
	"field_default":   "%s is a built-in field and can't be removed.",
	"field_unknown":   "You don't have a field named %s.",
	"field_remove":    "Which field should I remove?",
	"field_import":    "Paste a JSON object or list of field definitions.",
	"import_result":   "Added: %s\nSkipped: %s",
	"import_none":     "none",
	"fields_reset":    "Custom fields cleared; you're back on the defaults.",
	"questions_menu":  "Your reflection questions:\n%s\nReply add, remove, reset or done.",
	"questions_hint":  "Reply add, remove, reset or done.",
	"question_text":   "What should the question say?",
	"question_lang":   "Which language is it in? Reply en, ru or skip.",
	"question_added":  "Question added.",
	"question_remove": "Which question number should I remove?",
	"question_gone":   "Question removed.",
	"question_bad":    "I couldn't find that question. Reply its number from the list.",
	"questions_reset": "Questions reset to the defaults for your language.",
	"sheet_prompt":    "Send me the spreadsheet ID or URL.",
	"sheet_saved":     "Spreadsheet connected and tabs provisioned. ✅",
	"timezone_prompt": "Send me your timezone, e.g. Europe/Lisbon.",
	"timezone_saved":  "Timezone set to %s.",
	"timezone_bad":    "I don't know that timezone. Use an IANA name like Europe/Lisbon.",
	"reminder_prompt": "When should I remind you to log your day? Reply HH:MM in your timezone, or off.",
	"reminder_saved":  "I'll remind you daily at %s.",
	"reminder_off":    "Reminders turned off.",
	"reminder_bad":    "I couldn't read that time. Reply like 21:30, or off.",
	"language_prompt": "Which language? Reply en or ru.",
	"language_saved":  "Language set to English.",
	"unknown_command": "I don't know that command. See /help.",
	"menu_done":       "Okay, done.",
}

var messagesRU = map[string]string{
	"welcome":         "Привет! Я помогу вести дневник и отслеживать привычки. Попробуй /habits, /dream, /thought или /reflect. Остальное — в /help.",
	"help":            "Команды:\n/habits — записать день\n/dream — записать сон\n/thought — сохранить мысль\n/reflect — ответить на вопросы для размышлений\n/fields — настроить поля привычек\n/questions — настроить вопросы\n/sheet — подключить таблицу\n/timezone — указать часовой пояс\n/language — сменить язык\n/reminder — ежедневное напоминание\n/cancel — отменить текущий диалог",
	"idle_hint":       "Не понял. Попробуй /habits, чтобы записать день, или /help для списка команд.",
	"select_date":     "За какую дату хочешь сделать запись? Ответь: сегодня, вчера, YYYY-MM-DD или dd.mm.yyyy.",
	"bad_date":        "Не понял дату. Используй: сегодня, вчера, YYYY-MM-DD или dd.mm.yyyy.",
	"describe_day":    "Опиши свой день за %s текстом или голосом.",
	"dream_prompt":    "Расскажи свой сон.",
	"thought_prompt":  "Что у тебя на уме?",
	"confirm_entry":   "Проверь и подтверди:\n\n%s\n\nОтветь да, чтобы сохранить, или нет, чтобы исправить.",
	"confirm_hint":    "Ответь, пожалуйста, да или нет.",
	"resubmit":        "Хорошо, расскажи ещё раз — я учту это как дополнение к уже написанному.",
	"saved":           "✅ Сохранено!",
	"cancelled":       "✖ Отменено.",
	"nothing_cancel":  "Нечего отменять.",
	"error_generic":   "⚠ Произошла ошибка. Попробуй ещё раз.",
	"sheet_missing":   "⚠ Сначала подключи таблицу через /sheet.",
	"llm_disabled":    "Суммаризация отключена — сохраню твой текст как есть.",
	"voice_disabled":  "Расшифровка голоса не настроена. Напиши, пожалуйста, текстом.",
	"timeout_retry":   "⏳ Слишком долго. Попробуй ещё раз чуть позже.",
	"bad_response":    "Я запутался в твоём сообщении. Попробуй сформулировать иначе.",
	"access_denied":   "Не могу писать в твою таблицу. Выдай доступ на запись и попробуй снова.",
	"write_failed":    "⚠ Не получилось записать в таблицу. Попробуй ещё раз.",
	"reflect_seeded":  "Я добавил стартовый набор вопросов. Поменять их можно через /questions.",
	"reflect_intro":   "Ответь на всё одним сообщением — я разберусь:\n%s",
	"reflect_preview": "Вот как я разложил твои ответы:\n\n%s\n\nОтветь да, чтобы сохранить, или нет, чтобы ответить заново.",
	"fields_menu":     "Твои поля привычек:\n%s\nОтветь: add, remove, import, reset или done.",
	"fields_hint":     "Ответь: add, remove, import, reset или done.",
	"field_name":      "Как назвать новое поле? Строчными с подчёркиваниями, например water_glasses.",
	"field_desc":      "Опиши поле, чтобы извлечение знало, что искать.",
	"field_kind":      "Какой тип значения? Один из: text, integer, real, boolean.",
	"field_min":       "Минимальное значение? Ответь числом или skip.",
	"field_max":       "Максимальное значение? Ответь числом или skip.",
	"field_added":     "Поле %s добавлено.",
	"field_removed":   "Поле %s удалено. Колонка в таблице останется; новые строки будут с пустой ячейкой.",
	"field_default":   "%s — встроенное поле, его нельзя удалить.",
	"field_unknown":   "У тебя нет поля %s.",
	"field_remove":    "Какое поле удалить?",
	"field_import":    "Пришли JSON-объект или список определений полей.",
	"import_result":   "Добавлено: %s\nПропущено: %s",
	"import_none":     "ничего",
	"fields_reset":    "Свои поля удалены, снова действуют стандартные.",
	"questions_menu":  "Твои вопросы для размышлений:\n%s\nОтветь: add, remove, reset или done.",
	"questions_hint":  "Ответь: add, remove, reset или done.",
	"question_text":   "Как должен звучать вопрос?",
	"question_lang":   "На каком он языке? Ответь en, ru или skip.",
	"question_added":  "Вопрос добавлен.",
	"question_remove": "Какой номер вопроса удалить?",
	"question_gone":   "Вопрос удалён.",
	"question_bad":    "Не нашёл такой вопрос. Ответь его номером из списка.",
	"questions_reset": "Вопросы сброшены к стандартным для твоего языка.",
	"sheet_prompt":    "Пришли ID или ссылку на таблицу.",
	"sheet_saved":     "Таблица подключена, вкладки созданы. ✅",
	"timezone_prompt": "Пришли свой часовой пояс, например Europe/Moscow.",
	"timezone_saved":  "Часовой пояс: %s.",
	"timezone_bad":    "Не знаю такой часовой пояс. Используй имя из базы IANA, например Europe/Moscow.",
	"reminder_prompt": "Когда напоминать о записи дня? Ответь ЧЧ:ММ в своём часовом поясе или off.",
	"reminder_saved":  "Буду напоминать каждый день в %s.",
	"reminder_off":    "Напоминания выключены.",
	"reminder_bad":    "Не понял время. Ответь в формате 21:30 или off.",
	"language_prompt": "Какой язык? Ответь en или ru.",
	"language_saved":  "Язык переключён на русский.",
	"unknown_command": "Не знаю такую команду. Смотри /help.",
	"menu_done":       "Готово.",
}

// msg looks up a catalog message for the language, falling back to English,
// and applies fmt formatting when args are given.
func msg(lang, key string, args ...any) string {
	catalog := messagesEN
	if lang == "ru" {
		catalog = messagesRU
	}
	text, ok := catalog[key]
	if !ok {
		text = messagesEN[key]
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}
