package structural

import (
	"fmt"
	"strings"
)

var correctionKeywords = []string{"違った", "間違い", "実は", "訂正", "変わった", "勘違い"}

var parallelKeywords = []string{"同じよう", "他にも", "別の", "も同様", "も起きている", "B課", "Bさん", "Cさん"}

var negativeWords = []string{
	"困っ", "大変", "疲れ", "うまくいかない", "最悪", "つらい", "辛い",
	"問題", "課題", "遅い", "不満", "失敗", "ボトルネック", "しんどい",
}

var positiveWords = []string{"できた", "成功", "うまくいった", "嬉しい", "良かった", "達成"}

// readsNegative decides the analytical axis of a probing question: negative
// utterances get cause/bottleneck questions, positive ones get
// success-factor/replication questions.
func readsNegative(text string) bool {
	for _, w := range positiveWords {
		if strings.Contains(text, w) {
			return false
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	// Utterances without clear valence are treated as problem-seeking.
	return true
}

// probeQuestion builds a probing question anchored to the issue's theme; it
// never equals avoid, so the prior question's framing is not repeated.
func probeQuestion(issue string, negative bool, avoid string) string {
	var primary, alternate string
	if negative {
		primary = fmt.Sprintf("「%s」の根本的な原因はどこにあると思いますか？", issue)
		alternate = fmt.Sprintf("「%s」で一番のボトルネックになっているのは何でしょうか？", issue)
	} else {
		primary = fmt.Sprintf("「%s」がうまくいった要因は何だったと思いますか？", issue)
		alternate = fmt.Sprintf("「%s」は他の場面でも再現できそうですか？", issue)
	}
	if primary == avoid {
		return alternate
	}
	return primary
}

// fallbackAnalyze mirrors the model classification with keyword heuristics.
// theme already has any leading criticism clause stripped.
func fallbackAnalyze(theme string, in Input) Update {
	if in.Previous == nil {
		issue := simpleIssue(theme)
		return Update{
			Hypothesis: Hypothesis{
				Issue:        issue,
				Relationship: New,
				Reason:       "初回の入力のため新規トピックとして扱う",
			},
			ProbingQuestion: probeQuestion(issue, readsNegative(theme), in.PreviousQuestion),
		}
	}

	for _, kw := range correctionKeywords {
		if strings.Contains(theme, kw) {
			issue := simpleIssue(theme)
			return Update{
				Hypothesis: Hypothesis{
					Issue:        issue,
					Relationship: Correction,
					Reason:       fmt.Sprintf("訂正を示唆するキーワード「%s」が検出された", kw),
				},
				ProbingQuestion: fmt.Sprintf("状況が変わったのですね。「%s」について、今の状態を教えてください。", issue),
			}
		}
	}

	for _, kw := range parallelKeywords {
		if strings.Contains(theme, kw) {
			return Update{
				Hypothesis: Hypothesis{
					Issue:        fmt.Sprintf("複数の事例に共通する構造的課題（%sの拡張）", in.Previous.Issue),
					Relationship: Parallel,
					Reason:       fmt.Sprintf("並列事例を示唆するキーワード「%s」が検出された", kw),
				},
				ProbingQuestion: fmt.Sprintf("「%s」が複数の場所で起きているようですね。共通するパターンは何だと思いますか？", in.Previous.Issue),
			}
		}
	}

	return Update{
		Hypothesis: Hypothesis{
			Issue:        in.Previous.Issue,
			Relationship: Additive,
			Reason:       "前回の話題に関連する追加情報と判断",
		},
		ProbingQuestion: probeQuestion(in.Previous.Issue, readsNegative(theme), in.PreviousQuestion),
	}
}
