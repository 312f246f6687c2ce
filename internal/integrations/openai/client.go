package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"moments-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

// KeySource yields the API key on first use.
type KeySource func(ctx context.Context) (string, error)

// StaticKey returns a KeySource for a key known at startup.
func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) {
		if strings.TrimSpace(key) == "" {
			return "", errors.New("openai: API key is empty")
		}
		return key, nil
	}
}

// ParamStoreKey returns a KeySource that reads a {"token":"..."} parameter.
func ParamStoreKey(g paramstore.Getter, name string) KeySource {
	return func(ctx context.Context) (string, error) {
		key, err := paramstore.Token(ctx, g, name)
		if err != nil {
			return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
		}
		return key, nil
	}
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client is a focused OpenAI-compatible chat completion client.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	keySource  KeySource

	once   sync.Once
	client *goopenai.Client
	err    error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimSpace(baseURL); u != "" {
			c.baseURL = u
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. The key is resolved on the first request and
// reused for the lifetime of the process.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("openai: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		keySource:  keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveClient(ctx context.Context) (*goopenai.Client, error) {
	c.once.Do(func() {
		key, err := c.keySource(ctx)
		if err != nil {
			c.err = err
			return
		}
		cfg := goopenai.DefaultConfig(key)
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.client = goopenai.NewClientWithConfig(cfg)
	})
	return c.client, c.err
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	client, err := c.resolveClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", statusError(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize condenses replies on a post into a short summary.
func (c *Client) Summarize(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", errors.New("openai: nothing to summarize")
	}
	out, err := c.Complete(ctx, summaryPrompt(texts), 150, 0.3)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("openai: empty summary")
	}
	return out, nil
}

func summaryPrompt(texts []string) string {
	return "请将以下朋友圈回复内容生成一个简短的摘要，保留关键信息和讨论主题。\n" +
		"回复内容:\n" + strings.Join(texts, "\n") + "\n" +
		"摘要要求简洁，不超过100字。"
}

func statusError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return err
}
