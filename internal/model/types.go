package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	MinGeneration = 1
	MaxGeneration = 5

	MinTraitValue     = 0
	MaxTraitValue     = 100
	NeutralTraitValue = 50

	InitialMood = "neutral"
)

// Trait axis names in canonical order. Every per-axis loop in the engine
// walks the axes in this order.
const (
	TraitWarmth     = "warmth"
	TraitLogic      = "logic"
	TraitCreativity = "creativity"
	TraitEnergy     = "energy"
	TraitHumor      = "humor"
)

var TraitAxes = [...]string{TraitWarmth, TraitLogic, TraitCreativity, TraitEnergy, TraitHumor}

type TraitVector struct {
	Warmth     int `json:"warmth"`
	Logic      int `json:"logic"`
	Creativity int `json:"creativity"`
	Energy     int `json:"energy"`
	Humor      int `json:"humor"`
}

type ProgressionCounters struct {
	Conversations   int `json:"conversations"`
	UniqueTopics    int `json:"unique_topics"`
	Memories        int `json:"memories"`
	Intimacy        int `json:"intimacy"`
	ConsecutiveDays int `json:"consecutive_days"`
}

type VisualState struct {
	ColorPrimary   string  `json:"color_primary"`
	ColorSecondary string  `json:"color_secondary"`
	GlowIntensity  float64 `json:"glow_intensity"`
	ParticleCount  int     `json:"particle_count"`
	Form           string  `json:"form"`
}

type Agent struct {
	VersionedRecord
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	OwnerID           string              `json:"owner_id,omitempty"`
	Generation        int                 `json:"generation"`
	Traits            TraitVector         `json:"traits"`
	Counters          ProgressionCounters `json:"counters"`
	Mood              string              `json:"mood"`
	EvolutionProgress int                 `json:"evolution_progress"`
	Visual            VisualState         `json:"visual"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// BreedingAttempt is an immutable ledger entry. ChildID is set exactly when
// Success is true.
type BreedingAttempt struct {
	VersionedRecord
	ID           string    `json:"id"`
	ParentAID    string    `json:"parent_a_id"`
	ParentBID    string    `json:"parent_b_id"`
	ChildID      *string   `json:"child_id,omitempty"`
	Success      bool      `json:"success"`
	RolledValue  int       `json:"rolled_value"`
	MutatedTrait *string   `json:"mutated_trait,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Involves reports whether the attempt names agentID as either parent.
func (a BreedingAttempt) Involves(agentID string) bool {
	return a.ParentAID == agentID || a.ParentBID == agentID
}
