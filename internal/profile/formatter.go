package profile

import (
	"fmt"
	"strings"

	"github.com/driftlock/recall/pkg/types"
)

// Per-section limits for prompt context. The profile itself is already
// bounded; these keep the rendered context compact.
const (
	contextMaxTopics     = 8
	contextMaxQuestions  = 5
	contextMaxSentiments = 5
	contextMaxTrends     = 4
	contextMaxPeople     = 6
	contextMaxNarratives = 3
)

const basePrompt = "You are a helpful AI assistant. Provide thoughtful, accurate, and helpful responses."

// FormatContext renders a profile as plain-text conversation context suitable
// for inclusion in a system prompt.
func FormatContext(p *types.Profile) string {
	if p == nil || p.InteractionCount == 0 {
		return "This appears to be a new conversation with no previous context."
	}

	var parts []string

	parts = append(parts, fmt.Sprintf("Previous conversations: %d interactions, last on %s",
		p.InteractionCount, p.LastInteractionAt.Format("2006-01-02")))

	if len(p.ProminentTopics) > 0 {
		parts = append(parts, "Key topics discussed: "+strings.Join(head(p.ProminentTopics, contextMaxTopics), ", "))
	}
	if len(p.KeyQuestions) > 0 {
		parts = append(parts, "Important questions raised: "+strings.Join(head(p.KeyQuestions, contextMaxQuestions), "; "))
	}
	if len(p.UserSentiments) > 0 {
		parts = append(parts, "User sentiments: "+strings.Join(head(p.UserSentiments, contextMaxSentiments), "; "))
	}
	if len(p.EmergingTrends) > 0 {
		parts = append(parts, "Recent trends: "+strings.Join(head(p.EmergingTrends, contextMaxTrends), ", "))
	}
	if len(p.PeopleMentions) > 0 {
		names := make([]string, 0, contextMaxPeople)
		for _, m := range p.PeopleMentions {
			if len(names) == contextMaxPeople {
				break
			}
			names = append(names, m.Name)
		}
		parts = append(parts, "People/entities mentioned: "+strings.Join(names, ", "))
	}
	if len(p.NarrativeOverviews) > 0 {
		parts = append(parts, "Conversation patterns: "+strings.Join(head(p.NarrativeOverviews, contextMaxNarratives), " "))
	}

	return strings.Join(parts, "\n")
}

// SystemPrompt builds the personalized system prompt for a chat turn. For
// owners with no history it returns the base prompt unchanged.
func SystemPrompt(p *types.Profile) string {
	if p == nil || p.InteractionCount == 0 {
		return basePrompt
	}

	return basePrompt + "\n\nCONVERSATION CONTEXT:\n" + FormatContext(p) +
		"\n\nUse this context to provide more personalized and relevant responses. " +
		"Reference previous topics or patterns when appropriate, but don't be overly " +
		"specific about past conversations unless directly asked."
}

// Summarize returns a one-line profile summary for admin and debug surfaces.
func Summarize(p *types.Profile) string {
	if p == nil || p.InteractionCount == 0 {
		return "New user with no conversation history."
	}

	parts := []string{fmt.Sprintf("%d total interactions", p.InteractionCount)}

	if len(p.ProminentTopics) > 0 {
		parts = append(parts, "mainly discusses: "+strings.Join(head(p.ProminentTopics, 3), ", "))
	}
	if len(p.UserSentiments) > 0 {
		parts = append(parts, "recent sentiment: "+p.UserSentiments[len(p.UserSentiments)-1])
	}

	return strings.Join(parts, " | ")
}

func head(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
