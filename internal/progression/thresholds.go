package progression

import "gyeol/internal/model"

const (
	LabelConversations   = "conversations"
	LabelUniqueTopics    = "unique_topics"
	LabelMemories        = "memories"
	LabelIntimacy        = "intimacy"
	LabelConsecutiveDays = "consecutive_days"
)

// Requirement is the minimum progress needed to reach a generation.
type Requirement struct {
	Conversations   int `json:"conversations"`
	UniqueTopics    int `json:"unique_topics"`
	Memories        int `json:"memories"`
	Intimacy        int `json:"intimacy"`
	ConsecutiveDays int `json:"consecutive_days"`
}

// requirements is keyed by target generation. Every column increases
// strictly with the generation.
var requirements = map[int]Requirement{
	2: {Conversations: 30, UniqueTopics: 5, Memories: 10, Intimacy: 20, ConsecutiveDays: 3},
	3: {Conversations: 100, UniqueTopics: 15, Memories: 30, Intimacy: 40, ConsecutiveDays: 7},
	4: {Conversations: 300, UniqueTopics: 30, Memories: 50, Intimacy: 60, ConsecutiveDays: 14},
	5: {Conversations: 500, UniqueTopics: 50, Memories: 80, Intimacy: 80, ConsecutiveDays: 30},
}

// RequirementFor returns the thresholds to reach target.
func RequirementFor(target int) (Requirement, bool) {
	req, ok := requirements[target]
	return req, ok
}

func conditionsFor(counters model.ProgressionCounters, req Requirement) []Condition {
	return []Condition{
		newCondition(LabelConversations, counters.Conversations, req.Conversations),
		newCondition(LabelUniqueTopics, counters.UniqueTopics, req.UniqueTopics),
		newCondition(LabelMemories, counters.Memories, req.Memories),
		newCondition(LabelIntimacy, counters.Intimacy, req.Intimacy),
		newCondition(LabelConsecutiveDays, counters.ConsecutiveDays, req.ConsecutiveDays),
	}
}

func newCondition(label string, current, required int) Condition {
	return Condition{
		Label:    label,
		Current:  current,
		Required: required,
		Met:      current >= required,
	}
}
