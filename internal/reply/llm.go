package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	llmMaxTokens   = 100
	llmTemperature = 0.7
	promptHistory  = 10
)

// Completer is the chat completion capability LLMGenerator needs.
// *openai.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// LLMGenerator asks a chat model for the reply.
type LLMGenerator struct {
	llm Completer
}

func NewLLMGenerator(llm Completer) (*LLMGenerator, error) {
	if llm == nil {
		return nil, errors.New("reply: completer must not be nil")
	}
	return &LLMGenerator{llm: llm}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	out, err := g.llm.Complete(ctx, buildPrompt(req), llmMaxTokens, llmTemperature)
	if err != nil {
		return "", fmt.Errorf("reply: generate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("reply: generate: empty completion")
	}
	return Truncate(out), nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("请生成一个" + req.Style + "风格的朋友圈回复。\n")
	b.WriteString("朋友圈内容: " + req.Content + "\n")
	b.WriteString(emotionBlock(req) + "\n")
	if !req.IsFirstReply {
		b.WriteString(historyBlock(req.PreviousReplies) + "\n")
	}
	b.WriteString("回复要求:\n")
	b.WriteString(requirements(req.Style))
	return b.String()
}

func emotionBlock(req Request) string {
	if req.Emotion == nil {
		return ""
	}
	return fmt.Sprintf("\n朋友圈情感分析结果:\n- 情绪类型: %s\n- 负面程度评分: %d\n- 情绪描述: %s\n",
		req.Emotion.Category, req.Emotion.NegativityScore, req.Emotion.Description)
}

func historyBlock(replies []string) string {
	if len(replies) > promptHistory {
		replies = replies[len(replies)-promptHistory:]
	}
	var b strings.Builder
	b.WriteString("\n之前的回复:\n")
	for i, r := range replies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	return b.String()
}

func requirements(style string) string {
	return strings.Join([]string{
		"1. 回复风格必须是" + style,
		"2. 回复应考虑朋友圈内容的情感状态，对于负面情绪应给予适当安慰或支持",
		"3. 内容限定50字以内",
		"4. 可以包含文字和微信表情包",
		"5. 内容必须符合中国法律法规",
		"6. 直接输出回复内容，不要添加其他解释",
	}, "\n")
}
