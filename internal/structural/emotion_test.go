package structural

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmotionIntensity(t *testing.T) {
	assert.Equal(t, 0.7, EmotionIntensity("今日は本当に疲れた"))
	assert.Equal(t, 0.7, EmotionIntensity("締切に間に合うか不安"))
	assert.Equal(t, 0.7, EmotionIntensity("発表がうまくいった"))
	assert.Equal(t, 0.5, EmotionIntensity("承認フローの見直しを考えている"))
}
