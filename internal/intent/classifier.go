package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/logging"
	"go.uber.org/zap"
)

const classifierPrompt = `You are the routing layer of a thinking-partner system.
Your goal is NOT to answer the user, but to route their utterance to the
correct processing node, forming a primary and a secondary hypothesis about
the underlying intent.

### Categories
- "empathy": frustration, confusion, sadness, excitement, personal struggle.
- "deep_dive": a complex or half-baked idea that needs unpacking; requests for
  advice on personal or work problems.
- "brainstorm": explicit requests for ideas, hypotheses, possibilities.
- "knowledge": requests for facts, definitions, search-style questions.
- "summarize": requests to condense or recap prior material.
- "state_share": short reports of one's own physical or mental state
  ("sleepy", "feeling good") that need no analysis.
- "chat": ONLY simple greetings or casual remarks with no deeper intent.

### Rules
- If unsure between "chat" and "deep_dive", choose "deep_dive".
- Set "needs_probing" to true when the two hypotheses are genuinely close and
  committing to either would risk answering the wrong need.
- If previous context is supplied, judge in "previous_evaluation" whether the
  prior handling satisfied the user: "positive", "negative", "pivot" (they
  changed direction), or "none".

Respond with JSON only:
{
  "previous_evaluation": "positive" | "negative" | "pivot" | "none",
  "primary_intent": "<category>",
  "primary_confidence": 0.0-1.0,
  "secondary_intent": "<category>",
  "secondary_confidence": 0.0-1.0,
  "needs_probing": true | false,
  "reasoning": "<one sentence>"
}`

// PreviousContext carries the prior turn's outcome into the classifier so it
// can form hypotheses against what was already tried.
type PreviousContext struct {
	Intent   Intent
	Response string
}

// Classifier produces an intent hypothesis for each utterance, via the LLM
// when one is configured and a keyword scorer otherwise. Classify never
// returns an error; any failure resolves to the fallback path.
type Classifier struct {
	gen    llm.Generator
	logger *zap.Logger
}

// NewClassifier creates a classifier. gen may be nil, in which case only the
// keyword fallback runs.
func NewClassifier(gen llm.Generator, logger *zap.Logger) *Classifier {
	return &Classifier{gen: gen, logger: logger}
}

// Classify determines the intent of the given utterance.
func (c *Classifier) Classify(ctx context.Context, input string, prev *PreviousContext) Classification {
	if c.gen == nil {
		return FallbackClassify(input)
	}

	raw, err := c.gen.ChatJSON(ctx, c.buildMessages(input, prev), 0.1)
	if err != nil {
		c.logger.Warn("intent classification via LLM failed",
			zap.String("stage", "intent_classifier"),
			zap.String("input", logging.Truncate(input, 40)),
			zap.Error(err),
		)
		return FallbackClassify(input)
	}

	return c.parseResult(raw, input)
}

func (c *Classifier) buildMessages(input string, prev *PreviousContext) []llm.Message {
	user := input
	if prev != nil {
		user = fmt.Sprintf(
			"### Previous Intent\n%s\n\n### Previous Response (truncated)\n%s\n\n### Current Input\n%s",
			orNone(string(prev.Intent)),
			orNone(logging.Truncate(prev.Response, 200)),
			input,
		)
	}
	return []llm.Message{
		{Role: "system", Content: classifierPrompt},
		{Role: "user", Content: user},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// rawClassification mirrors the model's JSON with every field optional, so a
// partially-valid reply still yields a usable result after defaulting.
type rawClassification struct {
	PreviousEvaluation  *string  `json:"previous_evaluation"`
	PrimaryIntent       *string  `json:"primary_intent"`
	PrimaryConfidence   *float64 `json:"primary_confidence"`
	SecondaryIntent     *string  `json:"secondary_intent"`
	SecondaryConfidence *float64 `json:"secondary_confidence"`
	NeedsProbing        *bool    `json:"needs_probing"`
	Reasoning           *string  `json:"reasoning"`
}

func (c *Classifier) parseResult(raw []byte, input string) Classification {
	var parsed rawClassification
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.logger.Warn("intent classifier returned malformed JSON",
			zap.String("stage", "intent_classifier"),
			zap.String("input", logging.Truncate(input, 40)),
			zap.Error(err),
		)
		return FallbackClassify(input)
	}

	result := Classification{
		Primary:             Chat,
		PrimaryConfidence:   0.5,
		Secondary:           Chat,
		SecondaryConfidence: 0.5,
		PreviousEvaluation:  EvalNone,
		Method:              "llm",
	}

	if parsed.PrimaryIntent != nil {
		result.Primary = Parse(*parsed.PrimaryIntent)
	}
	if parsed.PrimaryConfidence != nil {
		result.PrimaryConfidence = clampConfidence(*parsed.PrimaryConfidence)
	}
	if parsed.SecondaryIntent != nil {
		result.Secondary = Parse(*parsed.SecondaryIntent)
	}
	if parsed.SecondaryConfidence != nil {
		result.SecondaryConfidence = clampConfidence(*parsed.SecondaryConfidence)
	}
	if parsed.NeedsProbing != nil {
		result.NeedsProbing = *parsed.NeedsProbing
	}
	if parsed.PreviousEvaluation != nil {
		result.PreviousEvaluation = parseEvaluation(*parsed.PreviousEvaluation)
	}
	if parsed.Reasoning != nil {
		result.Reasoning = *parsed.Reasoning
	}

	// The primary/secondary hypotheses stay recorded for observability even
	// when the effective intent is probe.
	if result.NeedsProbing {
		result.Intent = Probe
	} else {
		result.Intent = result.Primary
	}
	result.Confidence = result.PrimaryConfidence

	return result
}
