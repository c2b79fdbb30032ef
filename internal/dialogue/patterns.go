package dialogue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Affirmative prefixes accepted in confirmation states. Prefix match keeps
// "sim, pode" and "claro que sim" working without enumerating variants.
var affirmativePrefixes = []string{"sim", "s", "pode", "claro", "ok", "confirmo"}

// isAffirmative reports whether the utterance confirms a pending action.
// Anything else counts as a denial and the utterance is reprocessed as a
// fresh command.
func isAffirmative(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimRight(normalized, ".!,")
	if normalized == "" {
		return false
	}
	for _, p := range affirmativePrefixes {
		if normalized == p {
			return true
		}
		if strings.HasPrefix(normalized, p) {
			rest := normalized[len(p):]
			if r := []rune(rest); !unicode.IsLetter(r[0]) {
				return true
			}
		}
	}
	return false
}

// Deterministic side-channel patterns applied to slot answers before the
// oracle sees them. Users answer "qual o valor da entrada?" with things like
// "entrada de R$ 100 em 3x" that carry more than the asked slot.
var (
	installmentsPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x\b|vezes\b)`)
	downPaymentPattern  = regexp.MustCompile(`(?i)entrada\s*(?:de\s*)?(?:r\$\s*)?(\d+(?:[.,]\d{1,2})?)`)
)

// parseInstallmentCount extracts "<n>x" or "<n> vezes" from free text.
// Returns 0 when absent.
func parseInstallmentCount(input string) int {
	m := installmentsPattern.FindStringSubmatch(input)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// parseDownPayment extracts "entrada (de) (R$) <amount>" from free text.
func parseDownPayment(input string) (float64, bool) {
	m := downPaymentPattern.FindStringSubmatch(input)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// An hour is only trusted when marked ("14h", "14:30", "14 horas") or
// introduced by "às". A bare number in the fallback text is more likely a
// day of month ("amanhã dia 3") than a time.
var (
	markedHourPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2})|\s*h(?:oras)?\b)`)
	prefixedHourPattern = regexp.MustCompile(`(?i)(?:^|\s)[àa]s\s+(\d{1,2})\b`)
)

// scheduleDateTimeLayouts are tried in order against the oracle's date_time.
var scheduleDateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// resolveScheduleTime turns the oracle's extraction into a concrete start
// time. The resolved ISO timestamp wins; the raw time expression is a
// fallback handled with two narrow heuristics ("amanhã" plus an hour mark).
func resolveScheduleTime(dateTime, timeText string, now time.Time) (time.Time, bool) {
	if dateTime != "" {
		for _, layout := range scheduleDateTimeLayouts {
			if t, err := time.ParseInLocation(layout, dateTime, now.Location()); err == nil {
				return t, true
			}
		}
	}

	text := strings.ToLower(strings.TrimSpace(timeText))
	if text == "" {
		return time.Time{}, false
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if strings.Contains(text, "amanhã") || strings.Contains(text, "amanha") {
		day = day.AddDate(0, 0, 1)
	} else if !strings.Contains(text, "hoje") {
		return time.Time{}, false
	}

	hour, minute := 9, 0 // business-morning default when only the day is given
	m := markedHourPattern.FindStringSubmatch(text)
	if m == nil {
		m = prefixedHourPattern.FindStringSubmatch(text)
	}
	if m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil && h >= 0 && h <= 23 {
			hour = h
			if len(m) > 2 && m[2] != "" {
				if mm, err := strconv.Atoi(m[2]); err == nil && mm >= 0 && mm <= 59 {
					minute = mm
				}
			}
		}
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), true
}
