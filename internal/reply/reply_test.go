package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"moments-agent/internal/domain"
)

func emotion(score int) *domain.EmotionResult {
	return &domain.EmotionResult{Category: domain.EmotionNeutral, NegativityScore: score, Description: "d"}
}

func TestValidStyles(t *testing.T) {
	require.Equal(t, []string{"幽默", "严肃", "暧昧", "温馨", "批评"}, ValidStyles())
	for _, s := range ValidStyles() {
		require.True(t, IsValidStyle(s))
	}
	require.False(t, IsValidStyle("搞笑"))
	require.False(t, IsValidStyle(""))

	styles := ValidStyles()
	styles[0] = "changed"
	require.True(t, IsValidStyle(StyleHumorous))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "短", Truncate("短"))
	long := strings.Repeat("好", 60)
	got := Truncate(long)
	require.Equal(t, MaxReplyRunes, utf8.RuneCountInString(got))
	require.Equal(t, strings.Repeat("好", 50), got)
}

func TestTemplateGenerator(t *testing.T) {
	cases := []struct {
		name    string
		style   string
		emotion *domain.EmotionResult
		want    string
	}{
		{name: "negative", style: StyleWarm, emotion: emotion(7), want: "别难过，我在这里陪伴你~ 🌟"},
		{name: "negative boundary", style: StyleSerious, emotion: emotion(6), want: "理解你的感受，一切都会好起来的。"},
		{name: "positive", style: StyleHumorous, emotion: emotion(2), want: "看到你开心我也很开心！😂"},
		{name: "positive boundary", style: StyleFlirty, emotion: emotion(3), want: "你的快乐感染了我~ 😊"},
		{name: "neutral", style: StyleCritical, emotion: emotion(4), want: "我认为这个观点还有待商榷。"},
		{name: "no emotion", style: StyleHumorous, emotion: nil, want: "哈哈，说得太对了！😂"},
		{name: "unknown style", style: "搞笑", emotion: emotion(4), want: fallbackReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TemplateGenerator{}.Generate(context.Background(), Request{Style: tc.style, Emotion: tc.emotion})
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTemplateSummarizer(t *testing.T) {
	got, err := TemplateSummarizer{}.Summarize(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, "关于这条朋友圈的讨论涉及了多个方面，共有3条回复...", got)
}

type stubCompleter struct {
	out         string
	err         error
	prompt      string
	maxTokens   int
	temperature float32
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	s.prompt = prompt
	s.maxTokens = maxTokens
	s.temperature = temperature
	return s.out, s.err
}

func TestNewLLMGenerator_NilCompleter(t *testing.T) {
	_, err := NewLLMGenerator(nil)
	require.Error(t, err)
}

func TestLLMGenerator_FirstReplyPrompt(t *testing.T) {
	llm := &stubCompleter{out: "  加油！  "}
	g, err := NewLLMGenerator(llm)
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), Request{
		Content:      "今天好累",
		Style:        StyleWarm,
		IsFirstReply: true,
		Emotion:      &domain.EmotionResult{Category: domain.EmotionNegative, NegativityScore: 6, Description: "表达了压力或疲惫的情绪"},
	})
	require.NoError(t, err)
	require.Equal(t, "加油！", got)
	require.Equal(t, llmMaxTokens, llm.maxTokens)
	require.InDelta(t, 0.7, llm.temperature, 1e-6)

	require.True(t, strings.HasPrefix(llm.prompt, "请生成一个温馨风格的朋友圈回复。\n朋友圈内容: 今天好累\n"))
	require.Contains(t, llm.prompt, "- 情绪类型: 消极\n- 负面程度评分: 6\n")
	require.Contains(t, llm.prompt, "1. 回复风格必须是温馨")
	require.NotContains(t, llm.prompt, "之前的回复")
}

func TestLLMGenerator_HistoryKeepsLastTen(t *testing.T) {
	llm := &stubCompleter{out: "ok"}
	g, err := NewLLMGenerator(llm)
	require.NoError(t, err)

	var prev []string
	for i := 1; i <= 12; i++ {
		prev = append(prev, "reply-"+string(rune('a'+i-1)))
	}
	_, err = g.Generate(context.Background(), Request{Content: "c", Style: StyleSerious, PreviousReplies: prev})
	require.NoError(t, err)

	require.Contains(t, llm.prompt, "\n之前的回复:\n1. reply-c\n")
	require.Contains(t, llm.prompt, "10. reply-l\n")
	require.NotContains(t, llm.prompt, "reply-a")
	require.NotContains(t, llm.prompt, "reply-b")
}

func TestLLMGenerator_TruncatesAndFails(t *testing.T) {
	g, err := NewLLMGenerator(&stubCompleter{out: strings.Repeat("哈", 80)})
	require.NoError(t, err)
	got, err := g.Generate(context.Background(), Request{Style: StyleHumorous, IsFirstReply: true})
	require.NoError(t, err)
	require.Equal(t, MaxReplyRunes, utf8.RuneCountInString(got))

	upstream := errors.New("status 429")
	g, err = NewLLMGenerator(&stubCompleter{err: upstream})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), Request{Style: StyleHumorous, IsFirstReply: true})
	require.ErrorIs(t, err, upstream)

	g, err = NewLLMGenerator(&stubCompleter{out: "   "})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), Request{Style: StyleHumorous, IsFirstReply: true})
	require.ErrorContains(t, err, "empty")
}
