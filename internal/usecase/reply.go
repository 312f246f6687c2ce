package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"moments-agent/internal/domain"
	"moments-agent/internal/events"
	"moments-agent/internal/history"
	"moments-agent/internal/reply"
	"moments-agent/internal/scorer"
)

const (
	ResponseNotInterested = "我不感兴趣"
	ResponseNotAd         = "非广告内容"

	statusHealthy = "healthy"
)

// HistoryStore is the subset of *history.Store the service uses.
type HistoryStore interface {
	Append(ctx context.Context, key domain.ConversationKey, text string) error
	Replies(ctx context.Context, key domain.ConversationKey) []string
	IsFirstReply(ctx context.Context, key domain.ConversationKey) bool
	Delete(ctx context.Context, key domain.ConversationKey) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ReplyService struct {
	store     HistoryStore
	generator reply.Generator
	publisher events.Publisher
	status    history.Status
	logger    *slog.Logger
	now       func() time.Time
}

type GenerateReplyInput struct {
	Content string
	Style   string
	UserID  string
	PostID  string
}

type GenerateReplyOutput struct {
	Reply        string
	IsFirstReply bool
	Timestamp    time.Time
	Emotion      domain.EmotionResult
}

type HistoryOutput struct {
	UserID  string
	PostID  string
	Replies []string
}

type DetectAdInput struct {
	Content string
	UserID  string
	PostID  string
}

type DetectAdOutput struct {
	Result       domain.AdResult
	ResponseText string
	Timestamp    time.Time
}

type HealthOutput struct {
	Status    string
	Backend   string
	Durable   bool
	Timestamp time.Time
}

func NewReplyService(store HistoryStore, gen reply.Generator, pub events.Publisher, status history.Status, logger *slog.Logger) (*ReplyService, error) {
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if gen == nil {
		return nil, errors.New("usecase: reply generator must not be nil")
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyService{
		store:     store,
		generator: gen,
		publisher: pub,
		status:    status,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *ReplyService) GenerateReply(ctx context.Context, in GenerateReplyInput) (GenerateReplyOutput, error) {
	if !reply.IsValidStyle(in.Style) {
		return GenerateReplyOutput{}, newError(ErrorInvalidStyle, "invalid_reply_style", nil)
	}
	if in.Content == "" {
		return GenerateReplyOutput{}, newError(ErrorInvalidInput, "empty_content", nil)
	}
	key, err := conversationKey(in.UserID, in.PostID)
	if err != nil {
		return GenerateReplyOutput{}, err
	}

	first := s.store.IsFirstReply(ctx, key)
	previous := s.store.Replies(ctx, key)
	emotion := scorer.AnalyzeEmotion(in.Content)

	text, err := s.generator.Generate(ctx, reply.Request{
		Content:         in.Content,
		Style:           in.Style,
		IsFirstReply:    first,
		PreviousReplies: previous,
		Emotion:         &emotion,
	})
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return GenerateReplyOutput{}, newError(ErrorRateLimited, "generator_rate_limited", err)
		}
		return GenerateReplyOutput{}, newError(ErrorUpstream, "generator_error", err)
	}

	if err := s.store.Append(ctx, key, text); err != nil {
		return GenerateReplyOutput{}, newError(ErrorInternal, "history_write_error", err)
	}

	now := s.now().UTC()
	s.publisher.Publish(ctx, events.SubjectReplyGenerated, events.ReplyGenerated{
		UserID:        in.UserID,
		PostID:        in.PostID,
		IsFirstReply:  first,
		EmotionType:   string(emotion.Category),
		NegativeScore: emotion.NegativityScore,
		Timestamp:     now,
	})
	s.logger.Debug("reply generated", "key", key.String(), "first", first, "style", in.Style, "negative_score", emotion.NegativityScore)

	return GenerateReplyOutput{
		Reply:        text,
		IsFirstReply: first,
		Timestamp:    now,
		Emotion:      emotion,
	}, nil
}

func (s *ReplyService) History(ctx context.Context, userID, postID string) (HistoryOutput, error) {
	key, err := conversationKey(userID, postID)
	if err != nil {
		return HistoryOutput{}, err
	}
	replies := s.store.Replies(ctx, key)
	if replies == nil {
		replies = []string{}
	}
	return HistoryOutput{UserID: userID, PostID: postID, Replies: replies}, nil
}

func (s *ReplyService) DeleteHistory(ctx context.Context, userID, postID string) error {
	key, err := conversationKey(userID, postID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return newError(ErrorInternal, "history_delete_error", err)
	}
	return nil
}

func (s *ReplyService) DetectAd(ctx context.Context, in DetectAdInput) (DetectAdOutput, error) {
	if strings.TrimSpace(in.Content) == "" {
		return DetectAdOutput{}, newError(ErrorInvalidInput, "empty_content", nil)
	}

	res := scorer.DetectAd(in.Content)
	now := s.now().UTC()
	out := DetectAdOutput{Result: res, ResponseText: ResponseNotAd, Timestamp: now}
	if res.IsAd {
		out.ResponseText = ResponseNotInterested
		s.publisher.Publish(ctx, events.SubjectAdDetected, events.AdDetected{
			UserID:          in.UserID,
			PostID:          in.PostID,
			Confidence:      res.Confidence,
			MatchedKeywords: res.MatchedKeywords,
			Timestamp:       now,
		})
	}
	s.logger.Debug("ad detection", "is_ad", res.IsAd, "confidence", res.Confidence, "explanation", res.Explanation)
	return out, nil
}

func (s *ReplyService) Health() HealthOutput {
	return HealthOutput{
		Status:    statusHealthy,
		Backend:   s.status.Active,
		Durable:   s.status.Durable,
		Timestamp: s.now().UTC(),
	}
}

func conversationKey(userID, postID string) (domain.ConversationKey, error) {
	key := domain.ConversationKey{OwnerID: userID, PostID: postID}
	if !key.Valid() {
		return domain.ConversationKey{}, newError(ErrorInvalidInput, "missing_conversation_key", nil)
	}
	return key, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
