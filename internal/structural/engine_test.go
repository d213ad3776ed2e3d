package structural

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	payload string
	err     error
}

func (f *fakeGenerator) Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.payload, nil
}

func (f *fakeGenerator) ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.payload), nil
}

// capturingGenerator records the user prompt of the last ChatJSON call.
type capturingGenerator struct {
	payload  string
	lastUser string
}

func (f *capturingGenerator) Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	return f.payload, nil
}

func (f *capturingGenerator) ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) ([]byte, error) {
	f.lastUser = messages[len(messages)-1].Content
	return []byte(f.payload), nil
}

func newTestEngine(gen llm.Generator) *Engine {
	return NewEngine(gen, 0.6, 5, zap.NewNop())
}

func TestAnalyzeContinuationKeepsHypothesis(t *testing.T) {
	e := newTestEngine(nil)
	prev := &Hypothesis{Issue: "承認フローの遅さ", Relationship: New, Reason: "初回"}

	update := e.Analyze(context.Background(), Input{Content: "続き", Previous: prev})

	assert.Equal(t, "承認フローの遅さ", update.Hypothesis.Issue)
	assert.Equal(t, Additive, update.Hypothesis.Relationship)
	assert.Contains(t, update.ProbingQuestion, "承認フローの遅さ")
}

func TestAnalyzeEmpathyOverrideKeepsHypothesis(t *testing.T) {
	e := newTestEngine(nil)
	prev := &Hypothesis{Issue: "組織全体の権限委譲の欠如", Relationship: Parallel}

	// Even content that would otherwise read as a correction is skipped at
	// high emotion intensity.
	update := e.Analyze(context.Background(), Input{
		Content:          "それは関係ない、もう全部最悪だ",
		Previous:         prev,
		EmotionIntensity: 0.8,
	})

	assert.Equal(t, "組織全体の権限委譲の欠如", update.Hypothesis.Issue)
	assert.Equal(t, Additive, update.Hypothesis.Relationship)
	assert.Equal(t, "empathy override", update.Hypothesis.Reason)
	assert.NotEmpty(t, update.ProbingQuestion)
}

func TestAnalyzeContinuationWithoutHypothesisKeepsLatestTurn(t *testing.T) {
	gen := &capturingGenerator{payload: `{
		"relationship_type": "ADDITIVE",
		"updated_structural_issue": "承認フローの設計",
		"probing_question": "どこで詰まっていますか？"
	}`}
	e := newTestEngine(gen)

	// No standing hypothesis, so the continuation short-circuit does not
	// apply; the most recent turn must still reach the classifier even
	// though "続き" shares no content token with it.
	update := e.Analyze(context.Background(), Input{
		Content: "続き",
		History: []string{"昼休みの雑談メモ", "承認フローの設計が詰まっている"},
	})

	assert.Contains(t, gen.lastUser, "承認フローの設計が詰まっている")
	assert.NotContains(t, gen.lastUser, "昼休みの雑談メモ")
	assert.Equal(t, "承認フローの設計", update.Hypothesis.Issue)
}

func TestAnalyzeFirstTurnCreatesNewHypothesis(t *testing.T) {
	e := newTestEngine(nil)

	update := e.Analyze(context.Background(), Input{Content: "発電について研究している"})

	assert.Equal(t, New, update.Hypothesis.Relationship)
	assert.NotEmpty(t, update.Hypothesis.Issue)
	assert.Contains(t, update.Hypothesis.Issue, "発電")
}

func TestAnalyzeCriticismClauseExcludedFromNewHypothesis(t *testing.T) {
	e := newTestEngine(nil)

	update := e.Analyze(context.Background(), Input{
		Content: "その聞き方おかしいな。ブランド力について考察しよう",
	})

	assert.Equal(t, New, update.Hypothesis.Relationship)
	assert.Contains(t, update.Hypothesis.Issue, "ブランド力")
	assert.NotContains(t, update.Hypothesis.Issue, "おかしい")
}

func TestAnalyzeCollaborativeKeepsHypothesis(t *testing.T) {
	e := newTestEngine(nil)
	prev := &Hypothesis{Issue: "技術的負債の扱い"}

	update := e.Analyze(context.Background(), Input{Content: "一緒に考えよう", Previous: prev})

	assert.Equal(t, "技術的負債の扱い", update.Hypothesis.Issue)
	assert.Contains(t, update.ProbingQuestion, "一緒に")
}

func TestAnalyzeCorrectionPivotsQuestion(t *testing.T) {
	e := newTestEngine(nil)
	prev := &Hypothesis{Issue: "人事評価の不透明さ"}
	prevQuestion := "別の角度から伺いますね。「人事評価の不透明さ」をめぐって、人ではなく仕組みの面では何が引っかかっていますか？"

	update := e.Analyze(context.Background(), Input{
		Content:          "それは関係ない",
		Previous:         prev,
		PreviousQuestion: prevQuestion,
	})

	assert.Equal(t, "人事評価の不透明さ", update.Hypothesis.Issue)
	assert.NotEqual(t, prevQuestion, update.ProbingQuestion)
	assert.Contains(t, update.ProbingQuestion, "人事評価の不透明さ")
}

func TestAnalyzeTaskRequestCreatesNewHypothesis(t *testing.T) {
	e := newTestEngine(nil)
	prev := &Hypothesis{Issue: "チームの空気の悪さ"}

	update := e.Analyze(context.Background(), Input{Content: "この資料を要約して", Previous: prev})

	assert.Equal(t, New, update.Hypothesis.Relationship)
	assert.NotEqual(t, prev.Issue, update.Hypothesis.Issue)
	assert.Contains(t, update.ProbingQuestion, "目的")
}

func TestAnalyzeLLMClassification(t *testing.T) {
	gen := &fakeGenerator{payload: `{
		"relationship_type": "PARALLEL",
		"relationship_reason": "別部署でも同種の停滞が起きている",
		"updated_structural_issue": "組織全体の権限委譲の欠如",
		"probing_question": "共通しているのはどんな構造だと思いますか？"
	}`}
	e := newTestEngine(gen)
	prev := &Hypothesis{Issue: "A課長の承認フロー"}

	update := e.Analyze(context.Background(), Input{
		Content:  "B課でも同じような停滞が起きている",
		Previous: prev,
	})

	assert.Equal(t, Parallel, update.Hypothesis.Relationship)
	assert.Equal(t, "組織全体の権限委譲の欠如", update.Hypothesis.Issue)
	assert.Equal(t, "共通しているのはどんな構造だと思いますか？", update.ProbingQuestion)
}

func TestAnalyzeUnknownRelationshipDefaultsToNew(t *testing.T) {
	gen := &fakeGenerator{payload: `{
		"relationship_type": "SIDEWAYS",
		"updated_structural_issue": "何かの課題"
	}`}
	e := newTestEngine(gen)

	update := e.Analyze(context.Background(), Input{Content: "新しい悩みの相談"})

	assert.Equal(t, New, update.Hypothesis.Relationship)
	assert.NotEmpty(t, update.ProbingQuestion)
}

func TestAnalyzeModelErrorFallsBackToKeywords(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("timeout")}
	e := newTestEngine(gen)
	prev := &Hypothesis{Issue: "A課長の承認フロー"}

	update := e.Analyze(context.Background(), Input{
		Content:  "Bさんも同様の問題を抱えているらしい",
		Previous: prev,
	})

	assert.Equal(t, Parallel, update.Hypothesis.Relationship)
	assert.Contains(t, update.Hypothesis.Issue, "A課長の承認フロー")
}

func TestFallbackCorrectionKeyword(t *testing.T) {
	prev := &Hypothesis{Issue: "納期遅延の常態化"}

	update := fallbackAnalyze("実は状況が変わって、先週から体制が新しくなった", Input{
		Content:  "実は状況が変わって、先週から体制が新しくなった",
		Previous: prev,
	})

	assert.Equal(t, Correction, update.Hypothesis.Relationship)
	assert.NotEqual(t, prev.Issue, update.Hypothesis.Issue)
}

func TestFallbackDefaultsToAdditive(t *testing.T) {
	prev := &Hypothesis{Issue: "レビュー待ち時間の長さ"}

	update := fallbackAnalyze("昨日もマージまで丸二日かかった", Input{
		Content:  "昨日もマージまで丸二日かかった",
		Previous: prev,
	})

	assert.Equal(t, Additive, update.Hypothesis.Relationship)
	assert.Equal(t, prev.Issue, update.Hypothesis.Issue)
	assert.Contains(t, update.ProbingQuestion, prev.Issue)
}

func TestProbeQuestionAvoidsPriorFraming(t *testing.T) {
	issue := "承認フローの遅さ"
	first := probeQuestion(issue, true, "")
	second := probeQuestion(issue, true, first)

	assert.NotEqual(t, first, second)
	assert.Contains(t, second, issue)
}

func TestProbeQuestionVariesAxisByTone(t *testing.T) {
	negative := probeQuestion("リリース遅延", true, "")
	positive := probeQuestion("新施策の成功", false, "")

	assert.Contains(t, negative, "原因")
	assert.Contains(t, positive, "要因")
}

func TestFilterHistoryDropsUnrelatedEntries(t *testing.T) {
	history := []string{
		"承認フローが遅くて困っている",
		"今日の昼はカレーだった",
		"承認の権限が曖昧なままだ",
	}

	filtered := filterHistory("承認フローの話の続報です", history, 5)

	require.Len(t, filtered, 2)
	assert.NotContains(t, filtered, "今日の昼はカレーだった")
}

func TestFilterHistoryTruncatesEntries(t *testing.T) {
	long := strings.Repeat("承認", 120)

	filtered := filterHistory("承認の件", []string{long}, 5)

	require.Len(t, filtered, 1)
	assert.LessOrEqual(t, len([]rune(filtered[0])), 100)
}

func TestFilterHistoryKeepsNewestWindow(t *testing.T) {
	history := []string{
		"承認の話その1", "承認の話その2", "承認の話その3",
		"承認の話その4", "承認の話その5", "承認の話その6",
	}

	filtered := filterHistory("承認について", history, 5)

	require.Len(t, filtered, 5)
	assert.Equal(t, "承認の話その2", filtered[0])
	assert.Equal(t, "承認の話その6", filtered[4])
}

func TestFilterHistoryWindowPrecedesTokenFilter(t *testing.T) {
	// The only topical entry is six turns old; recency wins over overlap.
	history := []string{
		"承認フローの権限の話",
		"昼は蕎麦だった", "天気が荒れていた", "犬の散歩に行った",
		"週末は寝ていた", "テレビを見ていた",
	}

	filtered := filterHistory("承認フローについて", history, 5)

	assert.Empty(t, filtered)
}

func TestReadsNegative(t *testing.T) {
	assert.True(t, readsNegative("承認が遅くて困っている"))
	assert.False(t, readsNegative("新しい施策がうまくいった"))
	assert.True(t, readsNegative("来期の計画について"))
}
