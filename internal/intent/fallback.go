package intent

import "strings"

// keywordMap scores utterances when no LLM is reachable. Maintained
// independently from the semantic router's anchor phrases; the two lists
// cover overlapping categories and are not guaranteed to agree on boundary
// utterances.
var keywordMap = map[Intent][]string{
	Empathy: {
		"つらい", "しんどい", "疲れた", "嫌だ", "ひどい", "悲しい",
		"不安", "怖い", "寂しい", "イライラ", "ムカつく", "最悪",
		"聞いて", "吐き出し", "愚痴", "ため息",
	},
	Knowledge: {
		"教えて", "知りたい", "とは", "って何", "ですか",
		"違いは", "方法は", "やり方", "調べ", "検索",
		"参考", "文献", "論文", "データ",
	},
	DeepDive: {
		"どうすれば", "解決", "改善", "対策", "問題",
		"原因", "なぜ", "課題", "困って", "うまくいかない",
		"分析", "検討", "整理したい", "深掘り",
	},
	Brainstorm: {
		"アイデア", "案", "ひらめき", "思いつき", "仮説",
		"壁打ち", "ブレスト", "発想", "もし", "可能性",
		"新しい", "試したい", "どうだろう", "妄想",
	},
	Summarize: {
		"要約", "まとめて", "サマリ", "要点", "振り返り", "整理して",
	},
	StateShare: {
		"眠い", "腹減った", "目覚めた", "気分", "だるい",
	},
}

// fallbackOrder fixes the iteration order so ties resolve deterministically.
var fallbackOrder = []Intent{Empathy, Knowledge, DeepDive, Brainstorm, Summarize, StateShare}

// FallbackClassify scores each candidate intent by keyword hits. It mirrors
// the LLM path's ambiguity signal with a cheaper heuristic: probing is
// suggested when the top two normalized scores are close.
func FallbackClassify(input string) Classification {
	scores := make(map[Intent]float64, len(fallbackOrder))
	var total float64
	for _, candidate := range fallbackOrder {
		for _, kw := range keywordMap[candidate] {
			if strings.Contains(input, kw) {
				scores[candidate]++
				total++
			}
		}
	}

	var first, second Intent
	for _, candidate := range fallbackOrder {
		if first == "" || scores[candidate] > scores[first] {
			second = first
			first = candidate
			continue
		}
		if second == "" || scores[candidate] > scores[second] {
			second = candidate
		}
	}

	if first == "" || scores[first] == 0 {
		// No keyword matched anywhere: default to chat with low confidence.
		return Classification{
			Intent:              Chat,
			Confidence:          0.3,
			Primary:             Chat,
			PrimaryConfidence:   0.3,
			Secondary:           DeepDive,
			SecondaryConfidence: 0,
			PreviousEvaluation:  EvalNone,
			Method:              "keyword",
		}
	}

	primaryConf := scores[first] / total
	if primaryConf > 0.7 {
		primaryConf = 0.7
	}
	secondaryConf := scores[second] / total
	if secondaryConf > 0.5 {
		secondaryConf = 0.5
	}

	needsProbing := primaryConf-secondaryConf < 0.15 && secondaryConf > 0.1

	result := Classification{
		Intent:              first,
		Confidence:          primaryConf,
		Primary:             first,
		PrimaryConfidence:   primaryConf,
		Secondary:           second,
		SecondaryConfidence: secondaryConf,
		NeedsProbing:        needsProbing,
		PreviousEvaluation:  EvalNone,
		Method:              "keyword",
	}
	if needsProbing {
		result.Intent = Probe
	}
	return result
}
