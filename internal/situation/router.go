package situation

import "strings"

// Type is the conversational move an utterance represents.
type Type string

const (
	Continuation       Type = "continuation"
	Imperative         Type = "imperative"
	Correction         Type = "correction"
	CriticismThenTopic Type = "criticism_then_topic"
	TopicSwitch        Type = "topic_switch"
	Vent               Type = "vent"
	Question           Type = "question"
	SameTopicShortType Type = "same_topic_short"
	Generic            Type = "generic"
)

// Tag is the result of situation classification, consumed by handler nodes
// as a hint for the reply.
type Tag struct {
	Type Type
	// ResolvedTopic is the topic the next response should anchor to, when
	// one could be resolved.
	ResolvedTopic string
	// DoMode is true for execution/deliverable-seeking utterances, false
	// for dialogue-seeking ones.
	DoMode bool
}

// Classify applies ordered pattern checks and returns on the first match;
// the order is the tie-break rule. Pure function of the utterance text and
// the previous resolved topic.
func Classify(content, previousTopic string) Tag {
	text := strings.TrimSpace(content)

	do := IsDoIntent(text)

	if IsContinuation(text) {
		return Tag{Type: Continuation, ResolvedTopic: previousTopic, DoMode: do}
	}

	// A command about the standing topic; always execution-oriented.
	if IsImperative(text) && previousTopic != "" {
		return Tag{Type: Imperative, ResolvedTopic: previousTopic, DoMode: true}
	}

	if IsCorrection(text) && previousTopic != "" {
		return Tag{Type: Correction, ResolvedTopic: previousTopic}
	}

	if topic := ExtractTopicAfterCriticism(text); topic != "" {
		return Tag{Type: CriticismThenTopic, ResolvedTopic: topic, DoMode: do}
	}

	if IsTopicSwitch(text) {
		resolved := strings.TrimSpace(truncateRunes(text, 60))
		// Trim at the last sentence break so the topic is just the final clause.
		if idx := strings.LastIndex(resolved, "。"); idx >= 0 {
			resolved = strings.TrimSpace(resolved[idx+len("。"):])
		}
		return Tag{Type: TopicSwitch, ResolvedTopic: resolved, DoMode: do}
	}

	if IsVent(text) {
		// Venting is always dialogue, never execution.
		return Tag{Type: Vent}
	}

	if IsQuestion(text) {
		return Tag{Type: Question, ResolvedTopic: previousTopic, DoMode: do}
	}

	if IsCollaborative(text) && previousTopic != "" {
		return Tag{Type: SameTopicShortType, ResolvedTopic: previousTopic, DoMode: do}
	}

	if SameTopicShort(text, previousTopic) {
		return Tag{Type: SameTopicShortType, ResolvedTopic: previousTopic, DoMode: do}
	}

	return Tag{Type: Generic, ResolvedTopic: previousTopic, DoMode: do}
}
