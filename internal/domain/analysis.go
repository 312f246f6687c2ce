package domain

// EmotionCategory is the coarse tone of a piece of text.
type EmotionCategory string

const (
	EmotionPositive EmotionCategory = "积极"
	EmotionNeutral  EmotionCategory = "中性"
	EmotionNegative EmotionCategory = "消极"
)

// EmotionResult is the outcome of emotion analysis. NegativityScore is in
// [1, 10]; higher means more negative.
type EmotionResult struct {
	Category        EmotionCategory
	NegativityScore int
	Description     string
}

// AdResult is the outcome of advertisement detection. Confidence is in [0, 1].
type AdResult struct {
	IsAd            bool
	Confidence      float64
	MatchedKeywords []string
	Explanation     string
}
