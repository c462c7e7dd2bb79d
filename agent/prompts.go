package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/luxtick/luxtick_backend/models"
)

// BuildSystemPrompt renders the per-user system message. Everything the
// tools need to interpret relative dates and amounts is stated here.
func BuildSystemPrompt(user *models.User, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a personal purchase-tracking assistant. ")
	b.WriteString("You help the user understand their spending, track prices, manage discounts and keep shopping lists. ")
	b.WriteString("Answer from tool results only; never invent purchases or prices. ")
	b.WriteString("Keep answers short and conversational.\n\n")

	fmt.Fprintf(&b, "User: %s (id %d)\n", user.DisplayName(), user.ID)
	fmt.Fprintf(&b, "Currency: %s\n", user.Currency)
	fmt.Fprintf(&b, "Timezone: %s\n", user.Timezone)
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))

	b.WriteString("\nWhen a receipt draft is pending, remind the user to confirm or discard it. ")
	b.WriteString("For analytics SQL, scope every query with user_id = @userId.")
	return b.String()
}

// NewConversation seeds the message history for one user turn.
func NewConversation(user *models.User, text string) []Message {
	return []Message{
		{Role: "system", Content: BuildSystemPrompt(user, time.Now().UTC())},
		{Role: "user", Content: text},
	}
}
