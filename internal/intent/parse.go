// Package intent recognises the special-cased conversational intents that
// bypass ranking: clarification answers, project declarations, reminders,
// preferences, and facts about friends.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ClarificationAnswer is a reply to a pending "same or new project?" question.
type ClarificationAnswer int

// Clarification answers.
const (
	AnswerNone ClarificationAnswer = iota
	AnswerSame
	AnswerNew
)

var (
	sameAnswer = regexp.MustCompile(`(?i)^\s*(?:yes[, ]*)?(?:it'?s\s+|it is\s+)?(?:the\s+)?same(?:\s+(?:one|project))?\s*[.!]?\s*$`)
	newAnswer  = regexp.MustCompile(`(?i)^\s*(?:no[, ]*)?(?:it'?s\s+|it is\s+)?(?:a\s+)?(?:new|different)(?:\s+(?:one|project))?\s*[.!]?\s*$`)

	projectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:new|start(?:ing)?(?:\s+a)?(?:\s+new)?|creat(?:e|ing)(?:\s+a)?(?:\s+new)?)\s+project\s+(?:called|named)\s+["']?([\p{L}\p{N}][\p{L}\p{N} _-]*?)["']?\s*[.!]?\s*$`),
		regexp.MustCompile(`(?i)\bworking on (?:the\s+)?project\s+(?:called\s+|named\s+)?["']?([\p{L}\p{N}][\p{L}\p{N}_-]*)["']?`),
		regexp.MustCompile(`(?i)\bi'?m\s+starting\s+(?:the\s+|a\s+)?["']?([\p{L}\p{N}][\p{L}\p{N}_-]*)["']?\s+project\b`),
	}

	reminderPattern = regexp.MustCompile(`(?i)^\s*remind me\s+(?:to\s+)?(.+?)\s*[.!]?\s*$`)
	dueStart        = regexp.MustCompile(`(?i)\s(?:in|at|on|tomorrow)\b`)
	relativePattern = regexp.MustCompile(`(?i)^in\s+(\d+)\s*(minutes?|mins?|hours?|hrs?|days?|weeks?)$`)
	clockPattern    = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

	preferencePattern = regexp.MustCompile(`(?i)^\s*i\s+(?:really\s+|absolutely\s+)?(like|love|prefer|enjoy|hate|dislike|don'?t like|do not like|can'?t stand)\s+(.+?)\s*[.!]?\s*$`)

	friendPattern = regexp.MustCompile(`(?i)\bmy friend\s+([\p{L}][\p{L}'-]*)\s+(is|has|likes|loves|lives|works|hates|prefers|was|wants|needs)\s+(.+?)\s*[.!]?\s*$`)
)

// defaultReminderHour is used when only a date is given.
const defaultReminderHour = 9

// ParseClarificationAnswer classifies a short "same"/"new" reply.
func ParseClarificationAnswer(msg string) ClarificationAnswer {
	switch {
	case sameAnswer.MatchString(msg):
		return AnswerSame
	case newAnswer.MatchString(msg):
		return AnswerNew
	}
	return AnswerNone
}

// ParseProjectDeclaration extracts the project name from a declaration
// such as "new project called Atlas" or "I'm starting Atlas project".
func ParseProjectDeclaration(msg string) (string, bool) {
	if isQuestion(msg) {
		return "", false
	}
	for _, re := range projectPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// ParseReminder extracts the reminder text and due time from requests like
// "remind me to call Ana in 10 minutes", "... at 5pm", "... tomorrow" or
// "... on 2025-03-14". The time expression is the rightmost one that parses,
// so "meet Ana at the cafe in 10 minutes" keeps "at the cafe" in the text.
func ParseReminder(msg string, now time.Time) (string, time.Time, bool) {
	m := reminderPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", time.Time{}, false
	}
	body := m[1]
	starts := dueStart.FindAllStringIndex(body, -1)
	for i := len(starts) - 1; i >= 0; i-- {
		pos := starts[i][0]
		due, err := ParseDue(body[pos:], now)
		if err != nil {
			continue
		}
		// "tomorrow at 7:30am" is one expression.
		if i > 0 && strings.EqualFold(strings.TrimSpace(body[starts[i-1][0]:pos]), "tomorrow") {
			if t, err := ParseDue(body[starts[i-1][0]:], now); err == nil {
				pos, due = starts[i-1][0], t
			}
		}
		if text := strings.TrimSpace(body[:pos]); text != "" {
			return text, due, true
		}
	}
	return "", time.Time{}, false
}

// ParseDue turns a time expression into an absolute time relative to now.
// Relative forms and clock times are handled directly; anything else goes
// through dateparse.
func ParseDue(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimRight(strings.TrimSpace(strings.ToLower(expr)), ".!")

	if m := relativePattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, err
		}
		unit := m[2]
		switch {
		case strings.HasPrefix(unit, "min"):
			return now.Add(time.Duration(n) * time.Minute), nil
		case strings.HasPrefix(unit, "h"):
			return now.Add(time.Duration(n) * time.Hour), nil
		case strings.HasPrefix(unit, "day"):
			return now.AddDate(0, 0, n), nil
		case strings.HasPrefix(unit, "week"):
			return now.AddDate(0, 0, 7*n), nil
		}
	}

	if rest, ok := strings.CutPrefix(expr, "tomorrow"); ok {
		day := now.AddDate(0, 0, 1)
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "at"))
		if rest == "" {
			return day, nil
		}
		return clockOn(day, rest)
	}

	if rest, ok := strings.CutPrefix(expr, "at "); ok {
		if t, err := clockOn(now, rest); err == nil {
			if !t.After(now) {
				t = t.AddDate(0, 0, 1)
			}
			return t, nil
		}
		return absolute(rest, now)
	}

	if rest, ok := strings.CutPrefix(expr, "on "); ok {
		return absolute(rest, now)
	}
	return absolute(expr, now)
}

// clockOn returns day at the clock time given by expr ("5pm", "17:30").
func clockOn(day time.Time, expr string) (time.Time, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a clock time: %q", expr)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("clock time out of range: %q", expr)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}

// absolute parses a calendar expression. Date-only results are moved to
// the default reminder hour.
func absolute(expr string, now time.Time) (time.Time, error) {
	t, err := dateparse.ParseIn(expr, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised time %q: %w", expr, err)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		t = time.Date(t.Year(), t.Month(), t.Day(), defaultReminderHour, 0, 0, 0, t.Location())
	}
	return t, nil
}

// ParsePreference extracts the verb and object of a first-person
// preference such as "I really like green tea".
func ParsePreference(msg string) (verb, object string, ok bool) {
	if isQuestion(msg) {
		return "", "", false
	}
	m := preferencePattern.FindStringSubmatch(msg)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

// ParseFriendFact extracts a fact about a named friend such as
// "my friend Ana is a nurse".
func ParseFriendFact(msg string) (name, fact string, ok bool) {
	if isQuestion(msg) {
		return "", "", false
	}
	m := friendPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", "", false
	}
	name = titleCase(m[1])
	return name, name + " " + strings.ToLower(m[2]) + " " + strings.TrimSpace(m[3]), true
}

func isQuestion(msg string) bool {
	return strings.HasSuffix(strings.TrimSpace(msg), "?")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

// slug lower-cases s and joins words with dashes for folder paths.
func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
