package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func TestParseClarificationAnswer(t *testing.T) {
	cases := map[string]ClarificationAnswer{
		"same":                    AnswerSame,
		"It's the same project.":  AnswerSame,
		"yes, same one":           AnswerSame,
		"new":                     AnswerNew,
		"No, it's a new project":  AnswerNew,
		"different":               AnswerNew,
		"same time tomorrow?":     AnswerNone,
		"new project called Orca": AnswerNone,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ParseClarificationAnswer(msg), msg)
	}
}

func TestParseProjectDeclaration(t *testing.T) {
	cases := map[string]string{
		"new project called Atlas":                 "Atlas",
		"I'm starting a new project named Orca.":   "Orca",
		"I am working on project Helix these days": "Helix",
		"I'm starting Atlas project":               "Atlas",
	}
	for msg, want := range cases {
		got, ok := ParseProjectDeclaration(msg)
		require.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}

	_, ok := ParseProjectDeclaration("what is the new project called Atlas?")
	assert.False(t, ok)
	_, ok = ParseProjectDeclaration("I like projects")
	assert.False(t, ok)
}

func TestParseReminder(t *testing.T) {
	cases := []struct {
		msg  string
		text string
		due  time.Time
	}{
		{"remind me to call Ana in 10 minutes", "call Ana", testNow.Add(10 * time.Minute)},
		{"Remind me to stretch in 2 hours.", "stretch", testNow.Add(2 * time.Hour)},
		{"remind me to water plants in 3 days", "water plants", testNow.AddDate(0, 0, 3)},
		{"remind me to pick up the kids at 5pm", "pick up the kids", time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)},
		{"remind me to take pills at 9am", "take pills", time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"remind me to buy milk tomorrow", "buy milk", testNow.AddDate(0, 0, 1)},
		{"remind me to run tomorrow at 7:30am", "run", time.Date(2025, 3, 11, 7, 30, 0, 0, time.UTC)},
		{"remind me to file taxes on 2025-04-15", "file taxes", time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)},
		{"remind me to meet Ana at the cafe in 10 minutes", "meet Ana at the cafe", testNow.Add(10 * time.Minute)},
		{"remind me to go on a walk in 2 hours", "go on a walk", testNow.Add(2 * time.Hour)},
		{"remind me to look at the report tomorrow", "look at the report", testNow.AddDate(0, 0, 1)},
		{"remind me to meet Ana at the cafe tomorrow at 5pm", "meet Ana at the cafe", time.Date(2025, 3, 11, 17, 0, 0, 0, time.UTC)},
		{"remind me to check in at 5pm", "check in", time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		text, due, ok := ParseReminder(tc.msg, testNow)
		require.True(t, ok, tc.msg)
		assert.Equal(t, tc.text, text, tc.msg)
		assert.True(t, tc.due.Equal(due), "%s: got %s want %s", tc.msg, due, tc.due)
	}

	_, _, ok := ParseReminder("remind me to call Ana sometime", testNow)
	assert.False(t, ok)
	_, _, ok = ParseReminder("what did I do yesterday", testNow)
	assert.False(t, ok)
}

func TestParsePreference(t *testing.T) {
	verb, object, ok := ParsePreference("I really like green tea.")
	require.True(t, ok)
	assert.Equal(t, "like", verb)
	assert.Equal(t, "green tea", object)

	verb, object, ok = ParsePreference("I don't like mushrooms")
	require.True(t, ok)
	assert.Equal(t, "don't like", verb)
	assert.Equal(t, "mushrooms", object)

	_, _, ok = ParsePreference("Do I like tea?")
	assert.False(t, ok)
}

func TestParseFriendFact(t *testing.T) {
	name, fact, ok := ParseFriendFact("My friend ana is a nurse.")
	require.True(t, ok)
	assert.Equal(t, "Ana", name)
	assert.Equal(t, "Ana is a nurse", fact)

	_, _, ok = ParseFriendFact("What does my friend Ana like?")
	assert.False(t, ok)
}
