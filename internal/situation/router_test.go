package situation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyContinuation(t *testing.T) {
	tag := Classify("続き", "承認フローの遅さ")

	assert.Equal(t, Continuation, tag.Type)
	assert.Equal(t, "承認フローの遅さ", tag.ResolvedTopic)
}

func TestClassifyContinuationLongTextDoesNotMatch(t *testing.T) {
	long := "続きと言いたいところですが、実はまったく別の話をしたくてですね、長々と前置きをしてしまいました"
	tag := Classify(long, "前の話題")

	assert.NotEqual(t, Continuation, tag.Type)
}

func TestClassifyImperativeRequiresPreviousTopic(t *testing.T) {
	tag := Classify("実行して", "リリース計画")
	assert.Equal(t, Imperative, tag.Type)
	assert.Equal(t, "リリース計画", tag.ResolvedTopic)
	assert.True(t, tag.DoMode)

	// Without a standing topic the imperative check is skipped.
	tag = Classify("実行して", "")
	assert.NotEqual(t, Imperative, tag.Type)
}

func TestClassifyCorrection(t *testing.T) {
	tag := Classify("それは関係ない", "人事評価の話")

	assert.Equal(t, Correction, tag.Type)
	assert.Equal(t, "人事評価の話", tag.ResolvedTopic)
	assert.False(t, tag.DoMode)
}

func TestClassifyCorrectionWithoutTopicFallsThrough(t *testing.T) {
	tag := Classify("それは関係ない", "")

	assert.NotEqual(t, Correction, tag.Type)
}

func TestClassifyCriticismThenTopic(t *testing.T) {
	tag := Classify("その聞き方おかしいな。ブランド力について考察しよう", "")

	assert.Equal(t, CriticismThenTopic, tag.Type)
	assert.Equal(t, "ブランド力について考察しよう", tag.ResolvedTopic)
	assert.NotContains(t, tag.ResolvedTopic, "おかしい")
}

func TestClassifyTopicSwitch(t *testing.T) {
	tag := Classify("ブランド力について考察したい", "前の話題")

	assert.Equal(t, TopicSwitch, tag.Type)
	assert.Contains(t, tag.ResolvedTopic, "ブランド力")
}

func TestClassifyVent(t *testing.T) {
	tag := Classify("もう本当に疲れた、大変すぎる", "前の話題")

	assert.Equal(t, Vent, tag.Type)
	assert.Empty(t, tag.ResolvedTopic)
	assert.False(t, tag.DoMode)
}

func TestClassifyQuestion(t *testing.T) {
	tag := Classify("これはどういう仕組みですか？", "前の話題")

	assert.Equal(t, Question, tag.Type)
	assert.Equal(t, "前の話題", tag.ResolvedTopic)
}

func TestClassifyCollaborative(t *testing.T) {
	tag := Classify("困っていない、一緒に考察しよう", "権限委譲の欠如")

	assert.Equal(t, SameTopicShortType, tag.Type)
	assert.Equal(t, "権限委譲の欠如", tag.ResolvedTopic)
}

func TestClassifyLexicalOverlap(t *testing.T) {
	tag := Classify("承認フローのこと", "承認フローの遅さ")

	assert.Equal(t, SameTopicShortType, tag.Type)
	assert.Equal(t, "承認フローの遅さ", tag.ResolvedTopic)
}

func TestClassifyGenericPassesTopicThrough(t *testing.T) {
	tag := Classify("今日は天気が良かったので散歩に出かけてリフレッシュできました", "前の課題")

	assert.Equal(t, Generic, tag.Type)
	assert.Equal(t, "前の課題", tag.ResolvedTopic)
}

func TestClassifyDoMode(t *testing.T) {
	tag := Classify("リリース手順を書き出してまとめて", "リリース")
	assert.True(t, tag.DoMode)

	tag = Classify("最近いろいろ思うところがあって", "")
	assert.False(t, tag.DoMode)
}

func TestOrderContinuationBeatsQuestion(t *testing.T) {
	// "続きを教えて" carries a question word but continuation is checked first.
	tag := Classify("続きを教えて", "構造的課題")

	assert.Equal(t, Continuation, tag.Type)
}

func TestExtractTopicAfterCriticism(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"criticism lead", "その聞き方おかしい。ブランド力の話をしたい", "ブランド力の話をしたい"},
		{"odd marker without demonstrative", "なんかおかしい。別の話をしよう", "別の話をしよう"},
		{"no sentence break", "その聞き方おかしい", ""},
		{"empty remainder", "その聞き方おかしい。", ""},
		{"plain statement", "今日は良い天気。散歩した", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopicAfterCriticism(tt.text))
		})
	}
}

func TestSharedCueMatchers(t *testing.T) {
	assert.True(t, IsContinuation("じゃあ続きから"))
	assert.True(t, IsCorrection("そうじゃない"))
	assert.True(t, IsCollaborative("一緒に考えよう"))
	assert.True(t, IsTaskRequest("この資料を要約して"))
	assert.False(t, IsTaskRequest("要するにどういうこと"))
	assert.True(t, IsImperative("作成せよ"))
	assert.False(t, IsImperative("作成について議論したい"))
}

func TestTokensFilterStopwords(t *testing.T) {
	tokens := Tokens("これは承認フローのことです")

	assert.True(t, tokens["承認フロー"] || tokens["承認"] || len(tokens) > 0)
	assert.False(t, tokens["これ"])
}

func TestSameTopicShort(t *testing.T) {
	assert.True(t, SameTopicShort("承認の件", "承認フローの遅さ"))
	assert.False(t, SameTopicShort("全然別の話", "承認フローの遅さ"))
	assert.False(t, SameTopicShort("承認の件", ""))
}
