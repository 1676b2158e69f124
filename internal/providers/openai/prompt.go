package openai

import (
	"fmt"
	"strings"

	"tabitalk/internal/domain"
)

// buildTranslationPrompt assembles the single-message instruction prompt
// for the chat endpoint. The context window is embedded oldest first so
// pronouns and follow-ups resolve against the right turns.
func buildTranslationPrompt(text string, window []domain.Turn, sourceLang, targetLang string) string {
	history := "none"
	if len(window) > 0 {
		var lines []string
		for _, turn := range window {
			label := "User"
			if turn.Role == domain.RoleAssistant {
				label = "Translation"
			}
			lines = append(lines, fmt.Sprintf("%s: %s", label, turn.Text))
		}
		history = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are a professional translation assistant for travel conversations between %[1]s and %[2]s.

Rules:
1. If the input is %[1]s, translate it into natural %[2]s.
2. If the input is %[2]s, translate it into natural %[1]s.
3. Keep tone and register consistent with the conversation.
4. Prefer phrasing a traveler would actually use.
5. Return only the translation, with no extra commentary.

Conversation history:
%[3]s

Current input: %[4]s

Translation:`, sourceLang, targetLang, history, text)
}
