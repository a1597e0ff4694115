package engine

import (
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var relativeDates = map[string]int{
	"today":     0,
	"сегодня":   0,
	"yesterday": -1,
	"вчера":     -1,
}

// parseDate accepts an ISO calendar date, a day-month-year format, a
// day-month shorthand that assumes the current year, and relative labels in
// both catalog languages. Returns false when nothing matches.
func parseDate(text string, now time.Time) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}

	if delta, ok := relativeDates[text]; ok {
		return now.AddDate(0, 0, delta).Format(isoDate), true
	}

	for _, layout := range []string{isoDate, "02.01.2006", "02.01"} {
		parsed, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if layout == "02.01" {
			parsed = time.Date(now.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return parsed.Format(isoDate), true
	}
	return "", false
}
