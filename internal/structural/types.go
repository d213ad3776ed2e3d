// Package structural maintains the per-thread hypothesis about the user's
// underlying concern and decides, each turn, how a new utterance relates to
// it.
package structural

// RelationshipType describes how an utterance relates to the standing
// hypothesis.
type RelationshipType string

const (
	// Additive deepens the same concern with more detail.
	Additive RelationshipType = "ADDITIVE"
	// Parallel is another instance of the same category of concern.
	Parallel RelationshipType = "PARALLEL"
	// Correction signals the prior hypothesis was wrong or the situation
	// changed.
	Correction RelationshipType = "CORRECTION"
	// New is an unrelated topic.
	New RelationshipType = "NEW"
)

// ParseRelationship normalizes a raw relationship value; anything outside
// the closed set maps to New.
func ParseRelationship(raw string) RelationshipType {
	switch RelationshipType(raw) {
	case Additive, Parallel, Correction, New:
		return RelationshipType(raw)
	}
	return New
}

// Hypothesis is the current structural understanding of a thread. Exactly
// one is current per thread; updates replace, never append.
type Hypothesis struct {
	// Issue is the one-line definition of the structural concern.
	Issue string
	// Relationship is the judgment that produced this revision.
	Relationship RelationshipType
	// Reason is a short explanation of that judgment.
	Reason string
}

// Update is the engine's per-turn output: the replacement hypothesis and a
// probing question for the next reply.
type Update struct {
	Hypothesis      Hypothesis
	ProbingQuestion string
}

// Input carries everything the engine needs for one turn.
type Input struct {
	// Content is the current utterance.
	Content string
	// History holds up to the window's worth of recent same-thread
	// utterances, oldest first.
	History []string
	// Previous is the thread's standing hypothesis, nil on a first turn.
	Previous *Hypothesis
	// EmotionIntensity is the maximum emotion score for the utterance.
	EmotionIntensity float64
	// PreviousQuestion is the probing question asked last turn, used to
	// avoid repeating its framing.
	PreviousQuestion string
}
