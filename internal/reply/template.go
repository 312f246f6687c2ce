package reply

import (
	"context"
	"fmt"

	"moments-agent/internal/domain"
)

const fallbackReply = "很有意思的分享！"

type band int

const (
	bandNeutral band = iota
	bandNegative
	bandPositive
)

var templates = map[band]map[string]string{
	bandNegative: {
		StyleHumorous: "希望我的回复能让你心情好一点~ 😉",
		StyleSerious:  "理解你的感受，一切都会好起来的。",
		StyleFlirty:   "很心疼你的状态，需要一个拥抱吗？ 🫂",
		StyleWarm:     "别难过，我在这里陪伴你~ 🌟",
		StyleCritical: "虽然情绪不好，但我们可以一起分析问题。",
	},
	bandPositive: {
		StyleHumorous: "看到你开心我也很开心！😂",
		StyleSerious:  "你的积极态度很值得赞赏。",
		StyleFlirty:   "你的快乐感染了我~ 😊",
		StyleWarm:     "真好，能分享你的快乐~ 🌟",
		StyleCritical: "虽然整体积极，但还有些小建议想和你探讨。",
	},
	bandNeutral: {
		StyleHumorous: "哈哈，说得太对了！😂",
		StyleSerious:  "你说得很有道理，值得深思。",
		StyleFlirty:   "这个分享很特别呢~ 😊",
		StyleWarm:     "看完很温暖，谢谢分享~ 🌟",
		StyleCritical: "我认为这个观点还有待商榷。",
	},
}

func emotionBand(e *domain.EmotionResult) band {
	switch {
	case e == nil:
		return bandNeutral
	case e.NegativityScore >= 6:
		return bandNegative
	case e.NegativityScore <= 3:
		return bandPositive
	default:
		return bandNeutral
	}
}

// TemplateGenerator picks a canned reply by emotion band and style.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(_ context.Context, req Request) (string, error) {
	text, ok := templates[emotionBand(req.Emotion)][req.Style]
	if !ok {
		text = fallbackReply
	}
	return Truncate(text), nil
}

// TemplateSummarizer condenses replies without calling a model.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(_ context.Context, texts []string) (string, error) {
	return fmt.Sprintf("关于这条朋友圈的讨论涉及了多个方面，共有%d条回复...", len(texts)), nil
}
