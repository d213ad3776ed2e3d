package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/logging"
	"github.com/a-marczewski/mindyard/internal/queue"
	"github.com/a-marczewski/mindyard/internal/situation"
	"go.uber.org/zap"
)

// generate runs one chat completion with the node's system prompt, prior
// exchanges, and the current input. Returns "" on any failure so callers
// fall back to their templates.
func generate(ctx context.Context, deps Deps, system string, state State, temperature float64) string {
	if deps.Gen == nil {
		return ""
	}

	if hint := situationHint(state.Situation); hint != "" {
		system += "\n\n【今回の状況ヒント】\n" + hint
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, ex := range state.History {
		messages = append(messages, llm.Message{Role: "user", Content: ex.User})
		if ex.Assistant != "" {
			messages = append(messages, llm.Message{Role: "assistant", Content: ex.Assistant})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: state.Input})

	reply, err := deps.Gen.Chat(ctx, messages, temperature)
	if err != nil {
		deps.Logger.Warn("node generation failed",
			zap.String("input", logging.Truncate(state.Input, 80)),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

// situationHint nudges the model via the system prompt instead of rewriting
// the user's utterance.
func situationHint(tag situation.Tag) string {
	switch tag.Type {
	case situation.Continuation:
		return "相手は前の話題の「続き」を希望しています。履歴にある話題を踏まえて返してください。"
	case situation.Imperative:
		return fmt.Sprintf("相手は前の話題「%s」について実行・作業を指示しています。対話ではなく具体的な成果物で応えてください。", tag.ResolvedTopic)
	case situation.Correction:
		return "相手は直前の問いを訂正・否定しています。同じ質問を繰り返さず、別の角度から聞いてください。"
	case situation.CriticismThenTopic:
		return fmt.Sprintf("相手は批判の後に本題「%s」を出しています。批判は1句で受け止め、本題だけに乗ってください。", tag.ResolvedTopic)
	case situation.TopicSwitch:
		return fmt.Sprintf("相手は新しい話題「%s」に切り替えたいようです。その話題に自然に乗ってください。", tag.ResolvedTopic)
	case situation.Vent:
		return "相手は感情を吐き出しています。共感だけして、解決策は言わないでください。"
	case situation.SameTopicShortType:
		return fmt.Sprintf("相手は前の話題（%s）について短く言及しています。その話題を自然に続けてください。", tag.ResolvedTopic)
	}
	return ""
}

// --- chat ---

const chatSystemPrompt = `あなたは気軽に話せる会話相手です。挨拶や雑談に自然に応じつつ、
相手が興味深いことに触れたら好奇心を示して一歩だけ掘り下げてください。
日本語で、短く親しみやすく。`

type chatNode struct{ deps Deps }

func (n *chatNode) Name() string { return "chat" }

func (n *chatNode) Handle(ctx context.Context, state State) Result {
	if reply := generate(ctx, n.deps, chatSystemPrompt, state, 0.7); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: "なるほど！いいですね。"}
}

// --- empathy ---

const empathySystemPrompt = `あなたは感情を受け止める聞き役です。

ルール:
1. まず受け止める。相手の感情を判断せず完全に受容する。
2. 相手がまだ言語化できていない感情を、代わりに言葉にする。
3. 受け止めた後、感情の源泉を探る柔らかい質問を1つだけする。
4. アドバイスは禁止。「〜したらどうですか」は絶対に言わない。
日本語、です・ます調。短く温かく。`

type empathyNode struct{ deps Deps }

func (n *empathyNode) Name() string { return "empathy" }

func (n *empathyNode) Handle(ctx context.Context, state State) Result {
	if reply := generate(ctx, n.deps, empathySystemPrompt, state, 0.5); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: "お気持ち、受け止めました。話してくれてありがとうございます。"}
}

// --- knowledge ---

const knowledgeSystemPrompt = `あなたはナレッジアシスタントです。知識要求に対して簡潔かつ正確に回答してください。
確信がない場合は「〜と考えられています」等の表現を使い、専門用語は噛み砕いて説明してください。日本語で応答します。`

const researchCheckPrompt = `以下の質問について、詳細な調査（文献検索、データ収集等）が必要かどうかを判定してください。
一般的な知識で回答できるなら false、最新データや専門文献、複数情報源の横断が必要なら true です。

必ず以下のJSON形式で応答してください:
{"requires_deep_research": true | false, "reason": "判定理由"}`

const researchNotice = "\n\n(※詳細な裏付け情報を現在バックグラウンドで調査中です...)"

type knowledgeNode struct{ deps Deps }

func (n *knowledgeNode) Name() string { return "knowledge" }

// Handle answers immediately, then decides whether to kick off a background
// research task so the user is never kept waiting on it.
func (n *knowledgeNode) Handle(ctx context.Context, state State) Result {
	reply := generate(ctx, n.deps, knowledgeSystemPrompt, state, 0.3)
	if reply == "" {
		return Result{Reply: "お調べします。少々お待ちください。"}
	}

	result := Result{Reply: reply}
	if n.requiresResearch(ctx, state.Input) && n.deps.Scheduler != nil {
		task := queue.Task{
			Type:        queue.TypeDeepResearch,
			ThreadID:    state.ThreadID,
			UtteranceID: state.UtteranceID,
			Query:       state.Input,
		}
		id, err := n.deps.Scheduler.Enqueue(ctx, task)
		if err != nil {
			n.deps.Logger.Warn("failed to enqueue research task", zap.Error(err))
		} else {
			task.ID = id
			result.Task = &task
			result.Reply += researchNotice
		}
	}
	return result
}

func (n *knowledgeNode) requiresResearch(ctx context.Context, input string) bool {
	if n.deps.Gen == nil {
		return false
	}
	payload, err := n.deps.Gen.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: researchCheckPrompt},
		{Role: "user", Content: input},
	}, 0.1)
	if err != nil {
		n.deps.Logger.Warn("research check failed", zap.Error(err))
		return false
	}
	var verdict struct {
		RequiresDeepResearch bool `json:"requires_deep_research"`
	}
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return false
	}
	return verdict.RequiresDeepResearch
}

// --- deep dive ---

const deepDiveSystemPrompt = `あなたは思考の壁打ち相手です。答えを急がず、相手が自分の考えを
ほどいて自分なりの洞察に辿り着くのを助けてください。

手順:
1. 理解した内容を短く言い直して認識を合わせる。
2. 曖昧な点・抜けている点・矛盾に気づく。
3. 深掘りの問いを1〜2個だけ投げる。
4. 思考が散らかっていたら仮の構造を提示する。
日本語で、知的好奇心をもって。`

type deepDiveNode struct{ deps Deps }

func (n *deepDiveNode) Name() string { return "deep_dive" }

func (n *deepDiveNode) Handle(ctx context.Context, state State) Result {
	system := deepDiveSystemPrompt
	if state.HypothesisIssue != "" {
		system += fmt.Sprintf("\n\n現在の構造的課題の仮説: 「%s」。この仮説を踏まえて問いを立ててください。", state.HypothesisIssue)
	}
	if reply := generate(ctx, n.deps, system, state, 0.4); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: "課題を整理してみましょう。もう少し詳しく教えていただけますか？"}
}

// --- brainstorm ---

const brainstormSystemPrompt = `あなたはブレインストーミングのパートナーです。
否定しない。「Yes, and...」の精神で、量を重視してアイデアを広げてください。
異なる角度からの視点と「もし〜だったら？」という仮説を投げかけ、
最後に「さらに広げるなら？」という問いかけを添えてください。日本語で。`

type brainstormNode struct{ deps Deps }

func (n *brainstormNode) Name() string { return "brainstorm" }

func (n *brainstormNode) Handle(ctx context.Context, state State) Result {
	if reply := generate(ctx, n.deps, brainstormSystemPrompt, state, 0.8); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: "面白いアイデアですね！もう少し詳しく聞かせてもらえますか？"}
}

// --- summarize ---

const summarizeSystemPrompt = `あなたは会話の要約アシスタントです。これまでのやり取りの内容のみを根拠に、
重要なポイントを箇条書きで整理してわかりやすくまとめてください。日本語で回答します。`

type summarizeNode struct{ deps Deps }

func (n *summarizeNode) Name() string { return "summarize" }

func (n *summarizeNode) Handle(ctx context.Context, state State) Result {
	if len(state.History) == 0 {
		return Result{Reply: "まだ要約できるやり取りがありません。少し話してから「要約して」とお伝えください。"}
	}
	if reply := generate(ctx, n.deps, summarizeSystemPrompt, state, 0.3); reply != "" {
		return Result{Reply: reply}
	}

	// Deterministic digest of the latest exchanges.
	var b strings.Builder
	b.WriteString("ここまでの話を整理します。\n")
	start := 0
	if len(state.History) > 3 {
		start = len(state.History) - 3
	}
	for _, ex := range state.History[start:] {
		b.WriteString("・")
		b.WriteString(logging.Truncate(ex.User, 60))
		b.WriteString("\n")
	}
	return Result{Reply: strings.TrimRight(b.String(), "\n")}
}

// --- state share ---

const stateShareSystemPrompt = `相手は心身の状態を短く共有しています。分析や深掘りはせず、
一言で状態を受け止めて軽く返してください。日本語で、1文。`

type stateShareNode struct{ deps Deps }

func (n *stateShareNode) Name() string { return "state_share" }

func (n *stateShareNode) Handle(ctx context.Context, state State) Result {
	if reply := generate(ctx, n.deps, stateShareSystemPrompt, state, 0.6); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: "そうなんですね。無理せずいきましょう。"}
}
