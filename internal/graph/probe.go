package graph

import (
	"context"
	"fmt"

	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/llm"
	"go.uber.org/zap"
)

const probePromptFormat = `ユーザーの意図が曖昧です。2つの仮説があります。

仮説A: %s
仮説B: %s

どちらの方向かをさりげなく確かめる短い返答を日本語で作ってください。
- 「AですかBですか」のような選択肢の列挙はしない。会話として自然に。
- まだアドバイスや答えは出さない。
- 2〜3文以内。相手の感情のトーンに合わせる。`

// probeTemplates are fallback replies keyed by the hypothesis pair when the
// model is unavailable.
var probeTemplates = map[[2]intent.Intent]string{
	{intent.Empathy, intent.DeepDive}: "それ、大変でしたね...。お気持ちをまず吐き出したいですか？それとも、状況を整理して次のアクションを考えてみますか？",
	{intent.DeepDive, intent.Empathy}: "それ、大変でしたね...。お気持ちをまず吐き出したいですか？それとも、状況を整理して次のアクションを考えてみますか？",
	{intent.Knowledge, intent.DeepDive}: "なるほど、その点について気になっているんですね。サクッと事実を確認したい感じですか？それとも、もう少し掘り下げて考えてみたい感じですか？",
	{intent.DeepDive, intent.Knowledge}: "なるほど、その点について気になっているんですね。サクッと事実を確認したい感じですか？それとも、もう少し掘り下げて考えてみたい感じですか？",
	{intent.Brainstorm, intent.DeepDive}: "面白いですね。自由にアイデアを広げたい感じですか？それとも、まず課題を整理してからの方がいいですか？",
	{intent.DeepDive, intent.Brainstorm}: "面白いですね。自由にアイデアを広げたい感じですか？それとも、まず課題を整理してからの方がいいですか？",
}

const defaultProbeTemplate = "なるほど。もう少し詳しく聞かせてもらえますか？どんな方向で考えたいか、感じていることをそのまま教えてください。"

// probeNode verifies an ambiguous classification with a short steering
// question instead of committing to a hypothesis.
type probeNode struct{ deps Deps }

func (n *probeNode) Name() string { return "probe" }

func (n *probeNode) Handle(ctx context.Context, state State) Result {
	a := state.Classification.Primary
	if a == "" {
		a = intent.Chat
	}
	b := state.Classification.Secondary
	if b == "" {
		b = intent.Chat
	}

	if n.deps.Gen != nil {
		reply, err := n.deps.Gen.Chat(ctx, []llm.Message{
			{Role: "system", Content: fmt.Sprintf(probePromptFormat, a, b)},
			{Role: "user", Content: state.Input},
		}, 0.5)
		if err == nil && reply != "" {
			return Result{Reply: reply}
		}
		if err != nil {
			n.deps.Logger.Warn("probe generation failed", zap.Error(err))
		}
	}

	if tmpl, ok := probeTemplates[[2]intent.Intent{a, b}]; ok {
		return Result{Reply: tmpl}
	}
	return Result{Reply: defaultProbeTemplate}
}
