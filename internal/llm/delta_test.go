package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/recall/pkg/types"
)

func TestParseDeltaResponseTolerantInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.Delta
	}{
		{
			name:  "plain json",
			input: `{"prominentTopics": ["go"]}`,
			want:  types.Delta{ProminentTopics: []string{"go"}},
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"prominentTopics\": [\"go\"]}\n```",
			want:  types.Delta{ProminentTopics: []string{"go"}},
		},
		{
			name:  "prose before and after",
			input: `Here is the update: {"keyQuestions": ["why?"]} Hope that helps.`,
			want:  types.Delta{KeyQuestions: []string{"why?"}},
		},
		{
			name:  "nested objects",
			input: `{"peopleMentions": [{"name": "Ada", "context": "mentor"}]}`,
			want:  types.Delta{PeopleMentions: []types.PersonMention{{Name: "Ada", Context: "mentor"}}},
		},
		{
			name:  "braces inside strings",
			input: `{"narrativeOverviews": ["uses {curly} syntax"]}`,
			want:  types.Delta{NarrativeOverviews: []string{"uses {curly} syntax"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := ParseDeltaResponse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, delta)
		})
	}
}

func TestParseDeltaResponse(t *testing.T) {
	raw := "```json\n" + `{
  "prominentTopics": ["database optimization"],
  "representativeConversations": [],
  "narrativeOverviews": [],
  "keyQuestions": ["how do I tune postgres?"],
  "emergingTrends": [],
  "userSentiments": [],
  "peopleMentions": [{"name": "Priya", "context": "team DBA"}]
}` + "\n```"

	delta, err := ParseDeltaResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"database optimization"}, delta.ProminentTopics)
	assert.Equal(t, []string{"how do I tune postgres?"}, delta.KeyQuestions)
	require.Len(t, delta.PeopleMentions, 1)
	assert.Equal(t, "Priya", delta.PeopleMentions[0].Name)
	assert.False(t, delta.IsEmpty())
}

func TestParseDeltaResponseMalformed(t *testing.T) {
	delta, err := ParseDeltaResponse("sorry, I cannot answer that")
	require.Error(t, err)
	assert.True(t, delta.IsEmpty())
}

func TestParseDeltaResponseUnknownFieldsIgnored(t *testing.T) {
	delta, err := ParseDeltaResponse(`{"prominentTopics": ["cooking"], "confidence": 0.9}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"cooking"}, delta.ProminentTopics)
}

func TestBuildDeltaPrompt(t *testing.T) {
	profile := types.NewProfile("user-1")
	profile.ProminentTopics = []string{"gardening"}

	prompt := BuildDeltaPrompt(profile, types.Turn{
		OwnerID:       "user-1",
		UserText:      "what grows in shade?",
		AssistantText: "ferns and hostas do well",
		Timestamp:     1700000000000,
	})

	assert.Contains(t, prompt, "EXISTING METADATA:")
	assert.Contains(t, prompt, "gardening")
	assert.Contains(t, prompt, "what grows in shade?")
	assert.Contains(t, prompt, "ferns and hostas do well")
	assert.Contains(t, prompt, "2023-11-14T22:13:20Z")
}

func TestBuildDeltaPromptNilProfile(t *testing.T) {
	prompt := BuildDeltaPrompt(nil, types.Turn{UserText: "hi", AssistantText: "hello"})
	assert.Contains(t, prompt, "NEW CONVERSATION:")
}
