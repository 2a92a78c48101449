// Package profile implements the metadata merge engine: a pure consolidation
// function that folds noisy, LLM-generated profile deltas into a bounded,
// deduplicated contextual metadata profile.
package profile

import (
	"strings"
	"time"

	"github.com/driftlock/recall/pkg/types"
)

// Per-field caps. After appends each field is truncated to its cap keeping
// the most recently appended entries, preserving recency over completeness.
const (
	MaxProminentTopics             = 15
	MaxRepresentativeConversations = 10
	MaxNarrativeOverviews          = 8
	MaxKeyQuestions                = 12
	MaxEmergingTrends              = 10
	MaxUserSentiments              = 12
	MaxPeopleMentions              = 25
)

// TopicSimilarityThreshold is the word-overlap ratio above which two topics
// are considered the same for dedup purposes.
const TopicSimilarityThreshold = 0.5

// Merge consolidates a candidate delta into an existing profile and returns
// the new profile. The input profile is not mutated.
//
// Topics are deduplicated by word-overlap similarity; the other string lists
// by exact equality; people mentions by case-insensitive name. Every merge
// increments InteractionCount by exactly one and sets LastInteractionAt to
// the triggering turn's timestamp. A late-arriving older timestamp still
// overwrites: last write wins.
func Merge(existing *types.Profile, delta types.Delta, ts time.Time) *types.Profile {
	merged := existing.Clone()

	for _, topic := range delta.ProminentTopics {
		if !TopicSimilar(topic, merged.ProminentTopics, TopicSimilarityThreshold) {
			merged.ProminentTopics = append(merged.ProminentTopics, topic)
		}
	}

	merged.RepresentativeConversations = appendDistinct(merged.RepresentativeConversations, delta.RepresentativeConversations)
	merged.NarrativeOverviews = appendDistinct(merged.NarrativeOverviews, delta.NarrativeOverviews)
	merged.KeyQuestions = appendDistinct(merged.KeyQuestions, delta.KeyQuestions)
	merged.EmergingTrends = appendDistinct(merged.EmergingTrends, delta.EmergingTrends)
	merged.UserSentiments = appendDistinct(merged.UserSentiments, delta.UserSentiments)

	names := make(map[string]bool, len(merged.PeopleMentions))
	for _, p := range merged.PeopleMentions {
		names[strings.ToLower(p.Name)] = true
	}
	for _, p := range delta.PeopleMentions {
		if !names[strings.ToLower(p.Name)] {
			merged.PeopleMentions = append(merged.PeopleMentions, p)
			names[strings.ToLower(p.Name)] = true
		}
	}

	merged.ProminentTopics = truncateRecent(merged.ProminentTopics, MaxProminentTopics)
	merged.RepresentativeConversations = truncateRecent(merged.RepresentativeConversations, MaxRepresentativeConversations)
	merged.NarrativeOverviews = truncateRecent(merged.NarrativeOverviews, MaxNarrativeOverviews)
	merged.KeyQuestions = truncateRecent(merged.KeyQuestions, MaxKeyQuestions)
	merged.EmergingTrends = truncateRecent(merged.EmergingTrends, MaxEmergingTrends)
	merged.UserSentiments = truncateRecent(merged.UserSentiments, MaxUserSentiments)
	merged.PeopleMentions = truncateRecent(merged.PeopleMentions, MaxPeopleMentions)

	merged.InteractionCount++
	merged.LastInteractionAt = ts
	merged.UpdatedAt = time.Now()
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = merged.UpdatedAt
	}

	return merged
}

// TopicSimilar reports whether candidate is similar to any of the existing
// topics under the word-overlap heuristic: both strings are tokenized on
// whitespace (case-insensitive); a candidate token counts as common when it
// contains or is contained by some token of the existing topic; the topics
// are similar when |common| / min(|candidate|, |existing|) exceeds the
// threshold.
//
// This is intentionally a substring/overlap test, not edit distance: stems
// and synonyms are not normalized, so "database issues" and "SQL problems"
// are similar only when word-level overlap crosses the threshold.
//
// A blank candidate carries no tokens to distinguish it, so it counts as
// similar to any non-empty topic list and is never appended to one.
func TopicSimilar(candidate string, existing []string, threshold float64) bool {
	candWords := strings.Fields(strings.ToLower(candidate))
	if len(candWords) == 0 {
		return len(existing) > 0
	}

	for _, topic := range existing {
		existWords := strings.Fields(strings.ToLower(topic))
		if len(existWords) == 0 {
			continue
		}

		common := 0
		for _, w := range candWords {
			for _, e := range existWords {
				if strings.Contains(e, w) || strings.Contains(w, e) {
					common++
					break
				}
			}
		}

		minLen := len(candWords)
		if len(existWords) < minLen {
			minLen = len(existWords)
		}

		if float64(common)/float64(minLen) > threshold {
			return true
		}
	}

	return false
}

// appendDistinct appends candidates that are not exactly equal
// (case-sensitive) to an existing entry.
func appendDistinct(existing, candidates []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range candidates {
		if !seen[s] {
			existing = append(existing, s)
			seen[s] = true
		}
	}
	return existing
}

// truncateRecent trims a list to limit entries keeping the tail, i.e. the
// most recently appended values.
func truncateRecent[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[len(list)-limit:]
	}
	return list
}
