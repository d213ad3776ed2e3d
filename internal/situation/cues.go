// Package situation classifies the conversational move an utterance
// represents, independent of intent classification. Its cue matchers are the
// single source of truth for continuation / correction / collaborative
// phrase detection; the structural engine consumes the same matchers so the
// same linguistic cue is never classified two different ways.
package situation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var continuationPhrases = []string{
	"続きから", "続きで", "続きを", "続きお願い", "続き", "つづきから", "つづきで",
	"じゃあ続きから", "じゃあ続き", "では続き", "それでは続き", "続きからお願い",
	"続ける", "続けて", "つづける", "つづけて",
}

var continuationExact = map[string]bool{
	"続き": true, "つづき": true, "続ける": true, "続けて": true,
	"つづける": true, "つづけて": true,
}

// IsContinuation reports whether the utterance asks to pick up the previous
// topic ("続き", "続けて", ...). Only short utterances qualify.
func IsContinuation(text string) bool {
	t := flatten(text)
	if t == "" || runeLen(t) > 50 {
		return false
	}
	if continuationExact[t] {
		return true
	}
	for _, p := range continuationPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

var correctionPhrases = []string{
	"関係ない", "関係なく", "そうじゃない", "そうではない", "違う", "ちがう",
	"人物は関係", "状況は関係", "それは関係",
}

// IsCorrection reports whether the utterance corrects or rejects the framing
// of the previous question ("それは関係ない", "違う", ...).
func IsCorrection(text string) bool {
	t := flatten(text)
	if t == "" || runeLen(t) > 100 {
		return false
	}
	for _, p := range correctionPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

var collaborativePhrases = []string{
	"困っていない", "困ってない", "一緒に考察", "一緒に考え", "一緒に話そう", "一緒に話し",
	"考察しよう", "考えよう", "考えていこう", "深めよう",
}

// IsCollaborative reports whether the utterance rejects the problem framing
// and invites joint exploration of the standing topic.
func IsCollaborative(text string) bool {
	t := flatten(text)
	if t == "" || runeLen(t) > 80 {
		return false
	}
	for _, p := range collaborativePhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

var criticismLeads = []string{"その", "この", "あの", "その聞き", "その質問"}

// ExtractTopicAfterCriticism handles utterances like
// 「その聞き方おかしい。ブランド力について考察しよう」: a short leading clause
// criticising the prior question, then the actual topic. Returns the topic
// after the criticism, or "" when the pattern does not apply.
func ExtractTopicAfterCriticism(text string) string {
	t := flatten(text)
	idx := strings.Index(t, "。")
	if idx < 0 {
		return ""
	}
	first := t[:idx]
	rest := strings.TrimSpace(t[idx+len("。"):])
	if rest == "" || runeLen(first) > 40 {
		return ""
	}
	lead := false
	for _, p := range criticismLeads {
		if strings.HasPrefix(first, p) {
			lead = true
			break
		}
	}
	if !lead && !strings.Contains(first, "おかしい") && !strings.Contains(first, "変だ") {
		return ""
	}
	return strings.TrimSpace(truncateRunes(rest, 80))
}

var topicSwitchRe = regexp.MustCompile(`(について|を)\s*(考察|考えよう|考えたい|話そう|話したい)`)

// IsTopicSwitch reports whether the utterance explicitly opens a new topic
// (「〇〇について考察したい」「〇〇を話そう」).
func IsTopicSwitch(text string) bool {
	t := flatten(text)
	if runeLen(t) > 100 {
		return false
	}
	return topicSwitchRe.MatchString(t)
}

var ventWords = []string{
	"つらい", "嫌", "イヤ", "疲れ", "大変", "不安", "怒", "悲しい", "辛い", "困った", "どうしよう",
}

// IsVent reports whether the utterance reads as emotional venting.
func IsVent(text string) bool {
	for _, w := range ventWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

var questionWords = []string{
	"何", "なに", "どう", "なぜ", "教えて", "方法", "手順", "とは", "使い方", "どうやって",
}

// IsQuestion reports whether the utterance carries question markers.
func IsQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if strings.Contains(t, "?") || strings.Contains(t, "？") {
		return true
	}
	for _, w := range questionWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

var imperativeEndings = []string{
	"せよ", "しろ", "して", "してくれ", "してください",
	"やれ", "やって", "やってくれ", "やってください",
	"始めろ", "始めて", "始めてくれ", "始めてください",
	"作れ", "作って", "作ってくれ", "作ってください",
	"実行して", "実行しろ", "実行せよ",
	"お願い", "お願いします", "頼む", "頼んだ",
	"進めて", "進めろ", "進めてくれ",
}

// IsImperative reports whether a short utterance is a command about the
// standing topic (「作成せよ」「実行して」...).
func IsImperative(text string) bool {
	t := flatten(text)
	if t == "" || runeLen(t) > 60 {
		return false
	}
	for _, e := range imperativeEndings {
		if strings.HasSuffix(t, e) {
			return true
		}
	}
	return false
}

var doEndings = []string{
	"せよ", "しろ", "して", "してくれ", "してください",
	"やれ", "やって", "やってくれ", "やってください",
	"始めろ", "始めて", "始めてくれ", "始めてください",
	"作れ", "作って", "作ってくれ", "作ってください",
	"実行して", "実行しろ", "実行せよ",
	"進めて", "進めろ", "進めてくれ",
	"書いて", "書いてくれ", "書いてください",
	"直して", "直してくれ", "直してください",
	"調べて", "調べてくれ", "調べてください",
	"出して", "出してくれ", "出してください",
	"まとめて", "まとめてくれ", "まとめてください",
	"整理して", "整理してくれ", "整理してください",
}

var doKeywords = []string{
	"実装", "コーディング", "設計", "比較", "リファクタ",
	"デプロイ", "テスト", "デバッグ", "手順", "方法",
	"ステップ", "コマンド", "スクリプト", "SQL", "API",
	"コードを", "プログラムを", "アプリを", "サービスを",
	"作成する", "構築する", "開発する", "修正する",
	"書き出し", "メリット", "デメリット", "リスト",
	"計画を", "設計を", "仕様を", "要件を",
}

var doPatternRe = regexp.MustCompile(`を\s*(作成|実装|構築|開発|設計|修正|作る|書く|出す)`)

// IsDoIntent reports whether the utterance seeks a concrete deliverable
// (implementation, comparison, plan) rather than open-ended dialogue.
func IsDoIntent(text string) bool {
	t := flatten(text)
	if t == "" {
		return false
	}
	for _, e := range doEndings {
		if strings.HasSuffix(t, e) {
			return true
		}
	}
	for _, kw := range doKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return doPatternRe.MatchString(t)
}

var taskRequestKeywords = []string{
	"要約して", "要約を", "翻訳して", "翻訳を", "分析して",
	"このファイル", "この文書", "レビューして", "添削して",
}

// IsTaskRequest reports whether the utterance asks for a mechanical task
// (summarize, translate, analyze a file) rather than conversation.
func IsTaskRequest(text string) bool {
	for _, kw := range taskRequestKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Content tokens are runs of kanji, katakana, or latin/digits; hiragana is
// skipped because it is almost entirely particles and inflection.
var tokenRe = regexp.MustCompile(`[一-龥ァ-ヶーa-zA-Z0-9]{2,}`)

var stopTokens = map[string]bool{
	"今日": true, "昨日": true, "明日": true, "最近": true, "自分": true,
}

// Tokens extracts normalized content tokens (2+ chars, stopword-filtered).
func Tokens(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range tokenRe.FindAllString(text, -1) {
		tok = strings.ToLower(tok)
		if stopTokens[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

// SharesToken reports whether two texts share a content token. Compound
// tokens count when one contains the other, so 「承認」 still matches
// 「承認フロー」.
func SharesToken(a, b string) bool {
	ta := Tokens(a)
	if len(ta) == 0 {
		return false
	}
	for tb := range Tokens(b) {
		for tok := range ta {
			if strings.Contains(tok, tb) || strings.Contains(tb, tok) {
				return true
			}
		}
	}
	return false
}

// SameTopicShort reports whether a short utterance lexically overlaps the
// previous topic.
func SameTopicShort(current, previousTopic string) bool {
	if previousTopic == "" || runeLen(strings.TrimSpace(current)) > 30 {
		return false
	}
	return SharesToken(current, previousTopic)
}

func flatten(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
