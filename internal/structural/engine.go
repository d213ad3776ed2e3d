package structural

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/logging"
	"github.com/a-marczewski/mindyard/internal/situation"
	"go.uber.org/zap"
)

const historyEntryMaxRunes = 100

const analysisSystemPrompt = `あなたは構造的分析エンジンです。
ユーザーの入力を過去の会話コンテキストを踏まえて分析し、「構造的課題」を特定・更新します。

分析は以下の3ステップで行ってください:

## Step 1: 関係性判定
今回の入力は、直前の仮説に対してどのような関係にあるか判定してください。
- ADDITIVE (深化): 同じ構造的課題に対する追加情報・詳細
- PARALLEL (並列・亜種): 同じカテゴリの課題だが、別の事例・側面
- CORRECTION (訂正): 以前の仮説が間違っていた、あるいは状況が変化
- NEW (新規): 全く新しいトピック

## Step 2: 構造的理解の更新
- ADDITIVE: より詳細・具体的な課題定義に更新
- PARALLEL: 個別の事象を包含する、より抽象度の高い課題名に更新
- CORRECTION: 新しい情報に基づいて課題を再定義
- NEW: 今回の入力の主題のみから新しい構造的課題を定義

## Step 3: 問いの生成
更新された理解に基づき、深掘りのための質問を1つ作成してください。
質問は必ず課題の具体的なテーマに言及し、「どの点に興味がありますか」のような
汎用的な聞き方は避けてください。ネガティブな内容なら原因・ボトルネックを、
ポジティブな内容なら成功要因・再現性を問うてください。

必ず以下のJSON形式で応答してください:
{
    "relationship_type": "ADDITIVE" | "PARALLEL" | "CORRECTION" | "NEW",
    "relationship_reason": "判定理由",
    "updated_structural_issue": "更新された構造的課題",
    "probing_question": "深掘りのための問い"
}`

// Engine runs the per-turn hypothesis update. All failure modes degrade to
// the deterministic fallback; Analyze never returns an error.
type Engine struct {
	gen              llm.Generator
	empathyThreshold float64
	window           int
	logger           *zap.Logger
}

// NewEngine builds an Engine. gen may be nil, in which case every turn uses
// the keyword fallback.
func NewEngine(gen llm.Generator, empathyThreshold float64, window int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 5
	}
	return &Engine{
		gen:              gen,
		empathyThreshold: empathyThreshold,
		window:           window,
		logger:           logger,
	}
}

// Analyze performs one turn of the state machine and returns the replacement
// hypothesis plus a probing question.
func (e *Engine) Analyze(ctx context.Context, in Input) Update {
	content := strings.TrimSpace(in.Content)

	// The analysable theme excludes a leading criticism clause, so a new
	// hypothesis never absorbs meta-commentary about the prior question.
	theme := content
	if t := situation.ExtractTopicAfterCriticism(content); t != "" {
		theme = t
	}

	// Step 0: at high emotion intensity, skip classification entirely and
	// carry the hypothesis forward unchanged.
	if in.EmotionIntensity >= e.empathyThreshold {
		return e.empathyOverride(ctx, in)
	}

	// Step 1: deterministic short-circuits.
	if update, ok := e.shortCircuit(content, theme, in); ok {
		return update
	}

	// Step 2: drop history entries that share no content token with the
	// current utterance. Continuation phrases carry no content tokens of
	// their own, so they keep the single most recent turn instead.
	var history []string
	if situation.IsContinuation(content) {
		if n := len(in.History); n > 0 {
			history = []string{truncateRunes(strings.TrimSpace(in.History[n-1]), historyEntryMaxRunes)}
		}
	} else {
		history = filterHistory(content, in.History, e.window)
	}

	// Step 3: model classification.
	if e.gen != nil {
		update, err := e.classify(ctx, theme, history, in.Previous)
		if err == nil {
			return update
		}
		e.logger.Warn("structural classification failed, using fallback",
			zap.String("stage", "structural"),
			zap.String("input", logging.Truncate(content, 80)),
			zap.Error(err))
	}

	// Step 4: deterministic mirror.
	return fallbackAnalyze(theme, in)
}

func (e *Engine) empathyOverride(ctx context.Context, in Input) Update {
	issue := simpleIssue(in.Content)
	if in.Previous != nil {
		issue = in.Previous.Issue
	}

	question := e.empathyReply(ctx, in.Content)

	return Update{
		Hypothesis: Hypothesis{
			Issue:        issue,
			Relationship: Additive,
			Reason:       "empathy override",
		},
		ProbingQuestion: question,
	}
}

var stressWords = []string{"つらい", "辛い", "しんどい", "疲れ", "不安", "最悪", "限界"}

func (e *Engine) empathyReply(ctx context.Context, content string) string {
	if e.gen != nil {
		reply, err := e.gen.Chat(ctx, []llm.Message{
			{Role: "system", Content: "あなたは感情を受け止める聞き役です。アドバイスはせず、短く温かく共感だけを返してください。です・ます調、2文以内。"},
			{Role: "user", Content: content},
		}, 0.5)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
	}
	for _, w := range stressWords {
		if strings.Contains(content, w) {
			return "それは本当につらかったですね。今、一番重く感じている部分はどこですか？"
		}
	}
	return "お気持ち、受け止めました。話してくれてありがとうございます。"
}

func (e *Engine) shortCircuit(content, theme string, in Input) (Update, bool) {
	if situation.IsContinuation(content) && in.Previous != nil {
		return Update{
			Hypothesis: Hypothesis{
				Issue:        in.Previous.Issue,
				Relationship: Additive,
				Reason:       "前回の話題の続きを希望",
			},
			ProbingQuestion: fmt.Sprintf("「%s」の続きですね。前回の話のどこから掘り下げましょうか？", in.Previous.Issue),
		}, true
	}

	if situation.IsCollaborative(content) && in.Previous != nil {
		return Update{
			Hypothesis: Hypothesis{
				Issue:        in.Previous.Issue,
				Relationship: Additive,
				Reason:       "同じ課題の協働的な探索を希望",
			},
			ProbingQuestion: fmt.Sprintf("いいですね、一緒に考えましょう。「%s」のどの側面から整理してみますか？", in.Previous.Issue),
		}, true
	}

	if situation.IsCorrection(content) && in.Previous != nil {
		// The user rejected the prior framing; keep the hypothesis but
		// pivot to a dimension the prior question did not ask about.
		question := fmt.Sprintf("別の角度から伺いますね。「%s」をめぐって、人ではなく仕組みの面では何が引っかかっていますか？", in.Previous.Issue)
		if question == in.PreviousQuestion {
			question = fmt.Sprintf("では視点を変えて、「%s」がこのまま続いた場合、最初に行き詰まるのはどこだと思いますか？", in.Previous.Issue)
		}
		return Update{
			Hypothesis: Hypothesis{
				Issue:        in.Previous.Issue,
				Relationship: Additive,
				Reason:       "直前の問いの枠組みが訂正されたため仮説は維持",
			},
			ProbingQuestion: question,
		}, true
	}

	if situation.IsTaskRequest(content) {
		issue := simpleIssue(theme)
		return Update{
			Hypothesis: Hypothesis{
				Issue:        issue,
				Relationship: New,
				Reason:       "作業依頼のため新しいテーマとして扱う",
			},
			ProbingQuestion: fmt.Sprintf("「%s」ですね。この作業の目的や、誰に向けたものかを教えていただけますか？", issue),
		}, true
	}

	return Update{}, false
}

// filterHistory restricts the history to the newest window entries, then
// truncates each and keeps only those sharing a content token with the
// utterance.
func filterHistory(content string, history []string, window int) []string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	filtered := make([]string, 0, len(history))
	for _, entry := range history {
		entry = truncateRunes(strings.TrimSpace(entry), historyEntryMaxRunes)
		if entry == "" {
			continue
		}
		if situation.SharesToken(content, entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

type rawAnalysis struct {
	RelationshipType       *string `json:"relationship_type"`
	RelationshipReason     *string `json:"relationship_reason"`
	UpdatedStructuralIssue *string `json:"updated_structural_issue"`
	ProbingQuestion        *string `json:"probing_question"`
}

func (e *Engine) classify(ctx context.Context, theme string, history []string, previous *Hypothesis) (Update, error) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("## 直近の会話履歴:\n")
		for i, entry := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, entry)
		}
		b.WriteString("\n")
	}
	b.WriteString("## 直前の構造的課題（仮説）:\n")
	if previous != nil {
		b.WriteString(previous.Issue)
	} else {
		b.WriteString("（初回の入力のため、仮説なし）")
	}
	b.WriteString("\n\n## 今回の入力:\n---\n")
	b.WriteString(theme)
	b.WriteString("\n---\n\n上記を分析し、JSON形式で結果を返してください。")

	payload, err := e.gen.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: b.String()},
	}, 0.4)
	if err != nil {
		return Update{}, err
	}

	var raw rawAnalysis
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Update{}, fmt.Errorf("decode analysis: %w", err)
	}

	relationship := New
	if raw.RelationshipType != nil {
		relationship = ParseRelationship(*raw.RelationshipType)
	}
	reason := ""
	if raw.RelationshipReason != nil {
		reason = strings.TrimSpace(*raw.RelationshipReason)
	}
	issue := ""
	if raw.UpdatedStructuralIssue != nil {
		issue = strings.TrimSpace(*raw.UpdatedStructuralIssue)
	}
	if issue == "" {
		if previous != nil && relationship != New {
			issue = previous.Issue
		} else {
			issue = simpleIssue(theme)
		}
	}
	question := ""
	if raw.ProbingQuestion != nil {
		question = strings.TrimSpace(*raw.ProbingQuestion)
	}
	if question == "" {
		question = probeQuestion(issue, readsNegative(theme), "")
	}

	return Update{
		Hypothesis: Hypothesis{
			Issue:        issue,
			Relationship: relationship,
			Reason:       reason,
		},
		ProbingQuestion: question,
	}, nil
}

// simpleIssue derives a one-line issue from raw content.
func simpleIssue(content string) string {
	issue := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	runes := []rune(issue)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return issue
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
