// Package scorer classifies free text with fixed keyword rules.
package scorer

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"moments-agent/internal/domain"
)

// AdThreshold is the confidence above which text is treated as an advertisement.
const AdThreshold = 0.3

// adKeywords is ordered; matched keywords are reported in this order.
// Several entries are common words (微信, 电话, 链接) and fire on ordinary posts.
var adKeywords = []string{
	"优惠", "折扣", "促销", "特价", "限时", "秒杀", "抢购",
	"免费领取", "转发抽奖", "添加微信", "扫码关注", "加群",
	"投资", "理财", "赚钱", "兼职", "副业", "日入", "月入",
	"代理", "加盟", "招商", "合伙人", "会员", "VIP", "套餐",
	"咨询电话", "联系方式", "微信", "QQ", "电话", "手机号",
	"网址", "链接", "网址是", "链接是", "点击查看", "点击链接",
	"扫码", "二维码", "长按识别", "识别二维码",
	"正品", "保证", "效果", "神奇", "有效", "彻底", "解决",
}

// contains is swapped in tests to exercise the degraded path.
var contains = strings.Contains

// AdKeywords returns a copy of the keyword table.
func AdKeywords() []string {
	out := make([]string, len(adKeywords))
	copy(out, adKeywords)
	return out
}

// DetectAd scores text against the advertisement keyword table. It never
// fails: any internal fault yields a negative result with an explanation.
func DetectAd(text string) (res domain.AdResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.AdResult{
				IsAd:            false,
				Confidence:      0,
				MatchedKeywords: []string{},
				Explanation:     fmt.Sprintf("广告检测出错: %v", r),
			}
		}
	}()
	return scoreAd(text, adKeywords)
}

func scoreAd(text string, keywords []string) domain.AdResult {
	lower := strings.ToLower(text)

	matched := make([]string, 0)
	for _, kw := range keywords {
		if contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	confidence := 0.0
	if strings.TrimSpace(lower) != "" && len(keywords) > 0 {
		n := float64(len(matched))
		base := n / float64(len(keywords))
		// Signals per ten characters of input.
		density := n / math.Max(1, float64(utf8.RuneCountInString(lower))/10)
		confidence = clamp(base*0.6 + density*0.4)
	}

	return domain.AdResult{
		IsAd:            confidence > AdThreshold || len(matched) >= 2,
		Confidence:      confidence,
		MatchedKeywords: matched,
		Explanation:     fmt.Sprintf("匹配到%d个广告关键词: %s", len(matched), strings.Join(matched, ", ")),
	}
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
