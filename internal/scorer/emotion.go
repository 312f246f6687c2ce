package scorer

import (
	"fmt"

	"moments-agent/internal/domain"
)

type emotionRule struct {
	markers     []string
	category    domain.EmotionCategory
	score       int
	description string
}

// emotionRules is evaluated top to bottom and the first rule with a matching
// marker wins. "不开心" must stay ahead of "开心".
var emotionRules = []emotionRule{
	{
		markers:     []string{"难过", "伤心", "不开心"},
		category:    domain.EmotionNegative,
		score:       7,
		description: "表达了悲伤或不开心的情绪",
	},
	{
		markers:     []string{"开心", "高兴", "快乐"},
		category:    domain.EmotionPositive,
		score:       2,
		description: "表达了愉悦或开心的情绪",
	},
	{
		markers:     []string{"生气", "愤怒", "烦"},
		category:    domain.EmotionNegative,
		score:       8,
		description: "表达了愤怒或烦躁的情绪",
	},
	{
		markers:     []string{"谢谢", "感谢"},
		category:    domain.EmotionPositive,
		score:       1,
		description: "表达了感激的情绪",
	},
	{
		markers:     []string{"压力", "累", "疲惫"},
		category:    domain.EmotionNegative,
		score:       6,
		description: "表达了压力或疲惫的情绪",
	},
}

const (
	neutralScore       = 4
	neutralDescription = "情绪较为平静，没有明显的积极或消极倾向"
)

// AnalyzeEmotion classifies text with the ordered rule table. It never fails:
// any internal fault yields the neutral result with a note about the fault.
func AnalyzeEmotion(text string) (res domain.EmotionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.EmotionResult{
				Category:        domain.EmotionNeutral,
				NegativityScore: neutralScore,
				Description:     fmt.Sprintf("情感分析出错: %v", r),
			}
		}
	}()

	for _, rule := range emotionRules {
		if rule.matches(text) {
			return domain.EmotionResult{
				Category:        rule.category,
				NegativityScore: rule.score,
				Description:     rule.description,
			}
		}
	}
	return domain.EmotionResult{
		Category:        domain.EmotionNeutral,
		NegativityScore: neutralScore,
		Description:     neutralDescription,
	}
}

func (r emotionRule) matches(text string) bool {
	for _, m := range r.markers {
		if contains(text, m) {
			return true
		}
	}
	return false
}
