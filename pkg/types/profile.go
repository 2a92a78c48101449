package types

import "time"

// PersonMention is a person or entity the owner has referenced in
// conversation, with a short free-text note about the context.
type PersonMention struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

// Profile is the bounded, deduplicated behavioral profile derived
// incrementally from an owner's conversation history. Each list field has a
// fixed cap enforced by the merge engine; entries within a field are unique
// under the merge engine's dedup rules.
//
// A profile is created on an owner's first turn and mutated exclusively by
// the merge engine through the profile store. It is deleted only by an
// explicit owner-initiated wipe.
type Profile struct {
	OwnerID string `json:"owner_id"`

	ProminentTopics             []string        `json:"prominent_topics"`
	RepresentativeConversations []string        `json:"representative_conversations"`
	NarrativeOverviews          []string        `json:"narrative_overviews"`
	KeyQuestions                []string        `json:"key_questions"`
	EmergingTrends              []string        `json:"emerging_trends"`
	UserSentiments              []string        `json:"user_sentiments"`
	PeopleMentions              []PersonMention `json:"people_mentions"`

	InteractionCount  int       `json:"interaction_count"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProfile returns an empty profile for the given owner with all list
// fields initialized.
func NewProfile(ownerID string) *Profile {
	return &Profile{
		OwnerID:                     ownerID,
		ProminentTopics:             []string{},
		RepresentativeConversations: []string{},
		NarrativeOverviews:          []string{},
		KeyQuestions:                []string{},
		EmergingTrends:              []string{},
		UserSentiments:              []string{},
		PeopleMentions:              []PersonMention{},
	}
}

// Clone returns a deep copy of the profile. The merge engine operates on
// copies so callers never observe a partially merged profile.
func (p *Profile) Clone() *Profile {
	out := *p
	out.ProminentTopics = append([]string{}, p.ProminentTopics...)
	out.RepresentativeConversations = append([]string{}, p.RepresentativeConversations...)
	out.NarrativeOverviews = append([]string{}, p.NarrativeOverviews...)
	out.KeyQuestions = append([]string{}, p.KeyQuestions...)
	out.EmergingTrends = append([]string{}, p.EmergingTrends...)
	out.UserSentiments = append([]string{}, p.UserSentiments...)
	out.PeopleMentions = append([]PersonMention{}, p.PeopleMentions...)
	return &out
}

// Delta is an ephemeral, LLM-produced candidate update to a profile. It is
// never persisted standalone; the merge engine consumes it once. Missing or
// malformed fields are treated as empty lists.
type Delta struct {
	ProminentTopics             []string        `json:"prominentTopics"`
	RepresentativeConversations []string        `json:"representativeConversations"`
	NarrativeOverviews          []string        `json:"narrativeOverviews"`
	KeyQuestions                []string        `json:"keyQuestions"`
	EmergingTrends              []string        `json:"emergingTrends"`
	UserSentiments              []string        `json:"userSentiments"`
	PeopleMentions              []PersonMention `json:"peopleMentions"`
}

// IsEmpty reports whether the delta carries no candidate entries at all.
func (d Delta) IsEmpty() bool {
	return len(d.ProminentTopics) == 0 &&
		len(d.RepresentativeConversations) == 0 &&
		len(d.NarrativeOverviews) == 0 &&
		len(d.KeyQuestions) == 0 &&
		len(d.EmergingTrends) == 0 &&
		len(d.UserSentiments) == 0 &&
		len(d.PeopleMentions) == 0
}

// Turn is a completed chat exchange: the owner's message and the assistant's
// full response, stamped with the turn's timestamp in milliseconds.
type Turn struct {
	OwnerID       string `json:"owner_id"`
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	Timestamp     int64  `json:"timestamp"`
}
