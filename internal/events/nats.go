// Package events publishes reply and ad-detection notifications over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectReplyGenerated = "moments.reply.generated"
	SubjectAdDetected     = "moments.ad.detected"
)

// ReplyGenerated is emitted after a reply has been stored.
type ReplyGenerated struct {
	UserID        string    `json:"user_id"`
	PostID        string    `json:"post_id"`
	IsFirstReply  bool      `json:"is_first_reply"`
	EmotionType   string    `json:"emotion_type"`
	NegativeScore int       `json:"negative_score"`
	Timestamp     time.Time `json:"timestamp"`
}

// AdDetected is emitted when a post is classified as an advertisement.
type AdDetected struct {
	UserID          string    `json:"user_id"`
	PostID          string    `json:"post_id"`
	Confidence      float64   `json:"confidence"`
	MatchedKeywords []string  `json:"matched_keywords"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher is fire-and-forget: failures are logged, never returned.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}

type conn interface {
	Publish(subject string, data []byte) error
}

type NATS struct {
	conn   conn
	close  func()
	logger *slog.Logger
}

func NewNATS(url, token string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("moments-agent"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	return &NATS{conn: nc, close: nc.Close, logger: logger}, nil
}

func (n *NATS) Publish(_ context.Context, subject string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		n.logger.Warn("event marshal failed", "subject", subject, "error", err)
		return
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		n.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}
