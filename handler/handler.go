package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"moments-agent/internal/api"
)

const (
	correlationHeader = "X-Correlation-Id"
	historyPrefix     = "/reply_history/"
)

type Handler struct {
	uc api.ReplyUseCase
}

func NewHandler(uc api.ReplyUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle routes an API Gateway proxy event to the reply service.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newUUID()
	}
	logger := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	path := strings.TrimRight(req.Path, "/")
	switch {
	case path == "/health" && req.HTTPMethod == http.MethodGet:
		return respond(http.StatusOK, api.NewHealthResponse(h.uc.Health()), correlationID), nil

	case path == "/generate_reply" && req.HTTPMethod == http.MethodPost:
		var in api.GenerateReplyRequest
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
			return failure(logger, api.InvalidBody(err), correlationID), nil
		}
		out, err := h.uc.GenerateReply(ctx, in.Input())
		if err != nil {
			return failure(logger, err, correlationID), nil
		}
		return respond(http.StatusOK, api.NewGenerateReplyResponse(out), correlationID), nil

	case path == "/detect_ad" && req.HTTPMethod == http.MethodPost:
		var in api.DetectAdRequest
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
			return failure(logger, api.InvalidBody(err), correlationID), nil
		}
		out, err := h.uc.DetectAd(ctx, in.Input())
		if err != nil {
			return failure(logger, err, correlationID), nil
		}
		return respond(http.StatusOK, api.NewDetectAdResponse(out), correlationID), nil

	case strings.HasPrefix(path, historyPrefix):
		userID, postID, ok := historyParams(req, path)
		if !ok {
			break
		}
		switch req.HTTPMethod {
		case http.MethodGet:
			out, err := h.uc.History(ctx, userID, postID)
			if err != nil {
				return failure(logger, err, correlationID), nil
			}
			return respond(http.StatusOK, api.NewHistoryResponse(out), correlationID), nil
		case http.MethodDelete:
			if err := h.uc.DeleteHistory(ctx, userID, postID); err != nil {
				return failure(logger, err, correlationID), nil
			}
			return respond(http.StatusOK, api.NewDeleteResponse(), correlationID), nil
		}
		return respond(http.StatusMethodNotAllowed, api.ErrorResponse{Error: "METHOD_NOT_ALLOWED"}, correlationID), nil
	}

	return respond(http.StatusNotFound, api.ErrorResponse{Error: "NOT_FOUND"}, correlationID), nil
}

// historyParams prefers API Gateway path parameters and falls back to
// splitting the raw path.
func historyParams(req events.APIGatewayProxyRequest, path string) (string, string, bool) {
	if u, p := req.PathParameters["userID"], req.PathParameters["postID"]; u != "" && p != "" {
		return u, p, true
	}
	parts := strings.Split(strings.TrimPrefix(path, historyPrefix), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func failure(logger *slog.Logger, err error, correlationID string) events.APIGatewayProxyResponse {
	status, body := api.StatusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", body.Error, "err", err)
	} else {
		logger.Warn("request rejected", "status", status, "code", body.Error, "err", err)
	}
	return respond(status, body, correlationID)
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
