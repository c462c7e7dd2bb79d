package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/luxtick/luxtick_backend/models"
)

func TestBuildSystemPrompt(t *testing.T) {
	user := &models.User{
		ID:        7,
		FirstName: "Ana",
		Currency:  "EUR",
		Timezone:  "Europe/Madrid",
	}
	now := time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC)

	prompt := BuildSystemPrompt(user, now)
	for _, want := range []string{
		"Ana (id 7)",
		"Currency: EUR",
		"Timezone: Europe/Madrid",
		"Current date: 2026-08-20",
		"user_id = @userId",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestDisplayNameFallbacks(t *testing.T) {
	cases := []struct {
		user     models.User
		expected string
	}{
		{models.User{FirstName: "Ana", Username: "ana88"}, "Ana"},
		{models.User{Username: "ana88"}, "ana88"},
		{models.User{}, "User"},
	}
	for _, tc := range cases {
		if got := tc.user.DisplayName(); got != tc.expected {
			t.Fatalf("DisplayName(%+v) expected %q, got %q", tc.user, tc.expected, got)
		}
	}
}

func TestNewConversation(t *testing.T) {
	user := &models.User{ID: 1, FirstName: "Ana"}
	msgs := NewConversation(user, "what did I spend this month?")
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "what did I spend this month?" {
		t.Fatalf("user text not carried: %v", msgs[1].Content)
	}
}
