package structural

import "strings"

var emotionKeywords = map[string][]string{
	"frustrated": {"困った", "大変", "疲れた", "うまくいかない", "最悪", "つらい", "辛い", "しんどい", "イライラ", "ムカつく"},
	"anxious":    {"不安", "心配", "どうしよう", "間に合う", "怖い"},
	"achieved":   {"できた", "成功", "うまくいった", "嬉しい", "良かった"},
}

// EmotionIntensity estimates the maximum emotion score of an utterance with
// a keyword heuristic: any emotion keyword scores 0.7, otherwise a neutral
// 0.5. Used when no model-side emotion analysis is available.
func EmotionIntensity(text string) float64 {
	for _, words := range emotionKeywords {
		for _, w := range words {
			if strings.Contains(text, w) {
				return 0.7
			}
		}
	}
	return 0.5
}
