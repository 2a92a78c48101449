package profile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/recall/pkg/types"
)

func TestTopicSimilar(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		existing  []string
		want      bool
	}{
		{
			name:      "overlapping words are similar",
			candidate: "SQL problems",
			existing:  []string{"SQL optimization"},
			want:      true,
		},
		{
			name:      "substring containment counts as common",
			candidate: "databases",
			existing:  []string{"database issues"},
			want:      true,
		},
		{
			name:      "no overlap",
			candidate: "cooking recipes",
			existing:  []string{"database issues"},
			want:      false,
		},
		{
			name:      "case insensitive",
			candidate: "DATABASE tuning",
			existing:  []string{"database issues"},
			want:      true,
		},
		{
			name:      "blank candidate matches any non-empty list",
			candidate: "",
			existing:  []string{"database issues"},
			want:      true,
		},
		{
			name:      "whitespace-only candidate matches any non-empty list",
			candidate: "   ",
			existing:  []string{"database issues"},
			want:      true,
		},
		{
			name:      "blank candidate against empty list",
			candidate: "",
			existing:  nil,
			want:      false,
		},
		{
			name:      "empty existing list",
			candidate: "database issues",
			existing:  nil,
			want:      false,
		},
		{
			name:      "single token exact",
			candidate: "golang",
			existing:  []string{"golang"},
			want:      true,
		},
		{
			name:      "half overlap on two-word topics is not enough",
			candidate: "database recipes",
			existing:  []string{"cooking recipes"},
			// 1 common / min(2,2) = 0.5, threshold is strict >
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopicSimilar(tt.candidate, tt.existing, TopicSimilarityThreshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeNearDuplicateTopicIsDropped(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.ProminentTopics = []string{"database issues"}

	// "SQL problems" has no word overlap with "database issues" so it appends;
	// "database problems" overlaps and is dropped.
	merged := Merge(existing, types.Delta{ProminentTopics: []string{"database problems"}}, time.Now())
	assert.Equal(t, []string{"database issues"}, merged.ProminentTopics)
}

func TestMergeBlankTopicsDoNotAccumulate(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.ProminentTopics = []string{"database issues"}

	merged := Merge(existing, types.Delta{ProminentTopics: []string{""}}, time.Now())
	merged = Merge(merged, types.Delta{ProminentTopics: []string{""}}, time.Now())
	merged = Merge(merged, types.Delta{ProminentTopics: []string{"  "}}, time.Now())

	assert.Equal(t, []string{"database issues"}, merged.ProminentTopics)
}

func TestMergeDistinctTopicIsAppended(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.ProminentTopics = []string{"database issues"}

	merged := Merge(existing, types.Delta{ProminentTopics: []string{"cooking recipes"}}, time.Now())
	assert.Equal(t, []string{"database issues", "cooking recipes"}, merged.ProminentTopics)
}

func TestMergeExactDedupForStringLists(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.KeyQuestions = []string{"How do I tune Postgres?"}
	existing.UserSentiments = []string{"curious"}

	delta := types.Delta{
		KeyQuestions:   []string{"How do I tune Postgres?", "What is WAL?"},
		UserSentiments: []string{"Curious"}, // case differs, so it is distinct
	}

	merged := Merge(existing, delta, time.Now())
	assert.Equal(t, []string{"How do I tune Postgres?", "What is WAL?"}, merged.KeyQuestions)
	assert.Equal(t, []string{"curious", "Curious"}, merged.UserSentiments)
}

func TestMergePeopleDedupIsCaseInsensitive(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.PeopleMentions = []types.PersonMention{{Name: "Alice", Context: "coworker"}}

	delta := types.Delta{PeopleMentions: []types.PersonMention{
		{Name: "alice", Context: "manager"},
		{Name: "Bob", Context: "friend"},
	}}

	merged := Merge(existing, delta, time.Now())
	require.Len(t, merged.PeopleMentions, 2)
	assert.Equal(t, "Alice", merged.PeopleMentions[0].Name)
	assert.Equal(t, "Bob", merged.PeopleMentions[1].Name)
}

func TestMergeBoundedGrowthKeepsMostRecent(t *testing.T) {
	existing := types.NewProfile("owner-1")
	for i := 0; i < 10; i++ {
		existing.PeopleMentions = append(existing.PeopleMentions,
			types.PersonMention{Name: fmt.Sprintf("existing-%d", i)})
	}

	delta := types.Delta{}
	for i := 0; i < 20; i++ {
		delta.PeopleMentions = append(delta.PeopleMentions,
			types.PersonMention{Name: fmt.Sprintf("new-%d", i)})
	}

	merged := Merge(existing, delta, time.Now())
	require.Len(t, merged.PeopleMentions, MaxPeopleMentions)

	// 30 candidates against cap 25: the 5 oldest existing entries fall off.
	assert.Equal(t, "existing-5", merged.PeopleMentions[0].Name)
	assert.Equal(t, "new-19", merged.PeopleMentions[len(merged.PeopleMentions)-1].Name)
}

func TestMergeCounters(t *testing.T) {
	ts := time.UnixMilli(1000)
	merged := Merge(types.NewProfile("owner-1"), types.Delta{}, ts)
	assert.Equal(t, 1, merged.InteractionCount)
	assert.Equal(t, ts, merged.LastInteractionAt)

	// Last write wins: an older timestamp still overwrites.
	older := time.UnixMilli(500)
	merged = Merge(merged, types.Delta{}, older)
	assert.Equal(t, 2, merged.InteractionCount)
	assert.Equal(t, older, merged.LastInteractionAt)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	existing := types.NewProfile("owner-1")
	existing.ProminentTopics = []string{"database issues"}

	_ = Merge(existing, types.Delta{ProminentTopics: []string{"cooking recipes"}}, time.Now())
	assert.Equal(t, []string{"database issues"}, existing.ProminentTopics)
	assert.Equal(t, 0, existing.InteractionCount)
}

func TestMergeEmptyDeltaFieldsAreNotErrors(t *testing.T) {
	merged := Merge(types.NewProfile("owner-1"), types.Delta{}, time.Now())
	assert.Empty(t, merged.ProminentTopics)
	assert.Empty(t, merged.PeopleMentions)
	assert.Equal(t, 1, merged.InteractionCount)
}
