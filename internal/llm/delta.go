package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftlock/recall/pkg/types"
)

// deltaSystemPrompt instructs the model to produce a minimal profile delta
// for one conversation turn as raw JSON.
const deltaSystemPrompt = `You are a contextual metadata analyst focused on creating CONCISE, HIGH-VALUE metadata for semantic search. Your goal is to compress and consolidate information efficiently.

Given a new conversation and existing metadata, provide MINIMAL updates to these categories:

1. **Prominent Topics**: Broad themes (max 3-5 words each). Consolidate similar topics.
2. **Representative Conversations**: Only significant conversations worth remembering (max 1-2 per update)
3. **Narrative Overviews**: High-level patterns only (max 1 per update)
4. **Key Questions**: Only genuinely important recurring questions
5. **Emerging Trends**: New directions in conversation (be selective)
6. **User Sentiments**: Major sentiment shifts only
7. **People Mentions**: Only important names/entities mentioned

CRITICAL COMPRESSION RULES:
- CONSOLIDATE similar existing topics instead of adding new ones (e.g. "database issues" + "SQL problems" -> "database/SQL issues")
- Add MAXIMUM 1 item per category per conversation
- Use broad, searchable terms rather than specific details
- Skip trivial or one-off mentions
- If existing metadata already covers the topic, return empty array for that category
- Prioritize QUALITY over QUANTITY - be extremely selective

CRITICAL: Respond with ONLY valid JSON. Do NOT wrap in markdown code blocks. Do NOT include any text before or after the JSON. Return raw JSON only.

Example response:
{
  "prominentTopics": ["database optimization"],
  "representativeConversations": [],
  "narrativeOverviews": [],
  "keyQuestions": [],
  "emergingTrends": [],
  "userSentiments": [],
  "peopleMentions": []
}`

// DeltaSystemPrompt returns the system prompt used for delta generation.
func DeltaSystemPrompt() string {
	return deltaSystemPrompt
}

// BuildDeltaPrompt builds the user prompt for one turn. The existing profile
// is inlined so the model can avoid repeating information it already has.
func BuildDeltaPrompt(profile *types.Profile, turn types.Turn) string {
	existing, err := json.MarshalIndent(deltaPromptProfile(profile), "", "  ")
	if err != nil {
		existing = []byte("{}")
	}

	return fmt.Sprintf(`
EXISTING METADATA:
%s

NEW CONVERSATION:
User: %q
Assistant: %q
Timestamp: %s

Based on this new conversation and the existing metadata, what updates should be made? Return only new information that adds value for semantic search and user understanding.`,
		string(existing),
		turn.UserText,
		turn.AssistantText,
		time.UnixMilli(turn.Timestamp).UTC().Format(time.RFC3339))
}

// deltaPromptProfile projects a profile onto the delta field names so the
// model sees the same key spelling it must respond with.
func deltaPromptProfile(p *types.Profile) types.Delta {
	if p == nil {
		return types.Delta{}
	}
	return types.Delta{
		ProminentTopics:             p.ProminentTopics,
		RepresentativeConversations: p.RepresentativeConversations,
		NarrativeOverviews:          p.NarrativeOverviews,
		KeyQuestions:                p.KeyQuestions,
		EmergingTrends:              p.EmergingTrends,
		UserSentiments:              p.UserSentiments,
		PeopleMentions:              p.PeopleMentions,
	}
}

// ParseDeltaResponse parses the model's delta JSON. The prompt demands raw
// JSON, but models still fence it in markdown or surround it with prose, so
// the first JSON object in the text is decoded and anything after it is
// ignored. A malformed response yields an error; the caller substitutes an
// empty delta so one bad generation never loses a turn.
func ParseDeltaResponse(raw string) (types.Delta, error) {
	payload := strings.ReplaceAll(raw, "```json", "")
	payload = strings.ReplaceAll(payload, "```", "")
	payload = strings.TrimSpace(payload)

	start := strings.IndexByte(payload, '{')
	if start < 0 {
		return types.Delta{}, fmt.Errorf("no JSON object in delta response")
	}

	var delta types.Delta
	if err := json.NewDecoder(strings.NewReader(payload[start:])).Decode(&delta); err != nil {
		return types.Delta{}, fmt.Errorf("failed to parse delta JSON: %w", err)
	}
	return delta, nil
}
