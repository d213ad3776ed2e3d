package intent

// Intent is the closed set of routable conversation intents.
type Intent string

const (
	Chat       Intent = "chat"
	Empathy    Intent = "empathy"
	Knowledge  Intent = "knowledge"
	DeepDive   Intent = "deep_dive"
	Brainstorm Intent = "brainstorm"
	Summarize  Intent = "summarize"
	StateShare Intent = "state_share"
	// Probe is an effective intent only: ambiguity was detected and the
	// turn should ask a clarifying question instead of committing.
	Probe Intent = "probe"
)

// All lists the routable intents, excluding Probe.
var All = []Intent{Chat, Empathy, Knowledge, DeepDive, Brainstorm, Summarize, StateShare}

// Parse maps a raw string onto a known intent. Unknown values map to Chat,
// matching the routing default for malformed or forced values.
func Parse(s string) Intent {
	switch Intent(s) {
	case Chat, Empathy, Knowledge, DeepDive, Brainstorm, Summarize, StateShare, Probe:
		return Intent(s)
	default:
		return Chat
	}
}

// Known reports whether s is a recognized intent value.
func Known(s string) bool {
	switch Intent(s) {
	case Chat, Empathy, Knowledge, DeepDive, Brainstorm, Summarize, StateShare, Probe:
		return true
	default:
		return false
	}
}

// DisplayLabel returns the UI badge label for an intent.
func DisplayLabel(i Intent) string {
	switch i {
	case Empathy:
		return "共感モードで傾聴中..."
	case Knowledge:
		return "知識検索モードで思考中..."
	case DeepDive:
		return "深掘りモードで思考中..."
	case Brainstorm:
		return "ブレインストーミングモード"
	case Summarize:
		return "要約モード"
	case StateShare:
		return "状態共有モード"
	case Probe:
		return "意図を確認中..."
	default:
		return "雑談モード"
	}
}

// PreviousEvaluation describes whether the prior turn's handling appeared to
// satisfy the user.
type PreviousEvaluation string

const (
	EvalPositive PreviousEvaluation = "positive"
	EvalNegative PreviousEvaluation = "negative"
	EvalPivot    PreviousEvaluation = "pivot"
	EvalNone     PreviousEvaluation = "none"
)

func parseEvaluation(s string) PreviousEvaluation {
	switch PreviousEvaluation(s) {
	case EvalPositive, EvalNegative, EvalPivot:
		return PreviousEvaluation(s)
	default:
		return EvalNone
	}
}

// Classification is the fully-populated result of a turn's intent
// classification. Every code path produces one; confidences are always
// clamped to [0,1].
type Classification struct {
	// Intent is the effective intent: Probe when NeedsProbing is set,
	// otherwise the primary hypothesis.
	Intent     Intent
	Confidence float64

	Primary             Intent
	PrimaryConfidence   float64
	Secondary           Intent
	SecondaryConfidence float64

	NeedsProbing       bool
	PreviousEvaluation PreviousEvaluation
	Reasoning          string

	// Method records which stage produced the result:
	// "semantic_router", "llm", "keyword", or "override".
	Method string
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
