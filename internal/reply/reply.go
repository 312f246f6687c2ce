// Package reply produces short replies to feed posts, either from a static
// template table or from an OpenAI-compatible chat model.
package reply

import (
	"context"
	"slices"

	"moments-agent/internal/domain"
)

// MaxReplyRunes bounds every generated reply.
const MaxReplyRunes = 50

// Style names accepted by the generators.
const (
	StyleHumorous = "幽默"
	StyleSerious  = "严肃"
	StyleFlirty   = "暧昧"
	StyleWarm     = "温馨"
	StyleCritical = "批评"
)

var validStyles = []string{StyleHumorous, StyleSerious, StyleFlirty, StyleWarm, StyleCritical}

// ValidStyles returns the accepted style names in their canonical order.
func ValidStyles() []string {
	return slices.Clone(validStyles)
}

// IsValidStyle reports whether style is one of ValidStyles.
func IsValidStyle(style string) bool {
	return slices.Contains(validStyles, style)
}

// Request is the input to a Generator.
type Request struct {
	Content         string
	Style           string
	IsFirstReply    bool
	PreviousReplies []string
	Emotion         *domain.EmotionResult
}

// Generator turns a Request into reply text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Truncate cuts s to at most MaxReplyRunes runes.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxReplyRunes {
		return s
	}
	return string(r[:MaxReplyRunes])
}
