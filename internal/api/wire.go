package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"moments-agent/internal/usecase"
)

const (
	durableConnected    = "connected"
	durableDisconnected = "disconnected"
	deletedMessage      = "回复历史已删除"
)

// ReplyUseCase is the service both transports drive.
type ReplyUseCase interface {
	GenerateReply(ctx context.Context, in usecase.GenerateReplyInput) (usecase.GenerateReplyOutput, error)
	History(ctx context.Context, userID, postID string) (usecase.HistoryOutput, error)
	DeleteHistory(ctx context.Context, userID, postID string) error
	DetectAd(ctx context.Context, in usecase.DetectAdInput) (usecase.DetectAdOutput, error)
	Health() usecase.HealthOutput
}

type GenerateReplyRequest struct {
	CircleContent string `json:"circle_content"`
	ReplyStyle    string `json:"reply_style"`
	UserID        string `json:"user_id"`
	PostID        string `json:"post_id"`
	// PreviousReplies is accepted for compatibility; stored history wins.
	PreviousReplies []string `json:"previous_replies,omitempty"`
}

type EmotionAnalysis struct {
	EmotionType        string `json:"emotion_type"`
	NegativeScore      int    `json:"negative_score"`
	EmotionDescription string `json:"emotion_description"`
}

type GenerateReplyResponse struct {
	ReplyContent    string          `json:"reply_content"`
	IsFirstReply    bool            `json:"is_first_reply"`
	Timestamp       time.Time       `json:"timestamp"`
	EmotionAnalysis EmotionAnalysis `json:"emotion_analysis"`
}

type DetectAdRequest struct {
	CircleContent string `json:"circle_content"`
	UserID        string `json:"user_id"`
	PostID        string `json:"post_id"`
}

type DetectAdResponse struct {
	IsAd         bool      `json:"is_ad"`
	ResponseText string    `json:"response_text"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	UserID     string   `json:"user_id"`
	PostID     string   `json:"post_id"`
	ReplyCount int      `json:"reply_count"`
	Replies    []string `json:"replies"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status        string    `json:"status"`
	DurableStatus string    `json:"durable_status"`
	Backend       string    `json:"backend"`
	Timestamp     time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (r GenerateReplyRequest) Input() usecase.GenerateReplyInput {
	return usecase.GenerateReplyInput{
		Content: r.CircleContent,
		Style:   r.ReplyStyle,
		UserID:  r.UserID,
		PostID:  r.PostID,
	}
}

func (r DetectAdRequest) Input() usecase.DetectAdInput {
	return usecase.DetectAdInput{Content: r.CircleContent, UserID: r.UserID, PostID: r.PostID}
}

func NewGenerateReplyResponse(out usecase.GenerateReplyOutput) GenerateReplyResponse {
	return GenerateReplyResponse{
		ReplyContent: out.Reply,
		IsFirstReply: out.IsFirstReply,
		Timestamp:    out.Timestamp,
		EmotionAnalysis: EmotionAnalysis{
			EmotionType:        string(out.Emotion.Category),
			NegativeScore:      out.Emotion.NegativityScore,
			EmotionDescription: out.Emotion.Description,
		},
	}
}

func NewDetectAdResponse(out usecase.DetectAdOutput) DetectAdResponse {
	return DetectAdResponse{
		IsAd:         out.Result.IsAd,
		ResponseText: out.ResponseText,
		Confidence:   out.Result.Confidence,
		Timestamp:    out.Timestamp,
	}
}

func NewHistoryResponse(out usecase.HistoryOutput) HistoryResponse {
	return HistoryResponse{
		UserID:     out.UserID,
		PostID:     out.PostID,
		ReplyCount: len(out.Replies),
		Replies:    out.Replies,
	}
}

func NewDeleteResponse() DeleteResponse {
	return DeleteResponse{Message: deletedMessage}
}

func NewHealthResponse(out usecase.HealthOutput) HealthResponse {
	durable := durableDisconnected
	if out.Durable {
		durable = durableConnected
	}
	return HealthResponse{
		Status:        out.Status,
		DurableStatus: durable,
		Backend:       out.Backend,
		Timestamp:     out.Timestamp,
	}
}

// InvalidBody is the error returned for a request body that does not decode.
func InvalidBody(err error) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
}

// StatusForError maps a service error to an HTTP status and response body.
// Errors that are not *usecase.Error are reported as internal.
func StatusForError(err error) (int, ErrorResponse) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := ErrorResponse{Error: string(ue.Code), Reason: ue.Reason}
	switch ue.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidStyle:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal), Reason: ue.Reason}
	}
}
