package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client  *openai.Client
	Retries int
	Backoff time.Duration
	Debug   DebugFunc
}

func NewOpenAI(cfg Config) *OpenAI {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	c.HTTPClient = httpClient
	return &OpenAI{
		client:  openai.NewClientWithConfig(c),
		Retries: cfg.Retries,
		Backoff: defaultBackoff,
		Debug:   cfg.Debug,
	}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	msgs := req.Messages()
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, len(msgs)),
	}
	for i, m := range msgs {
		chatReq.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var lastErr error
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if attempt > 0 {
			wait := o.Backoff << (attempt - 1)
			if o.Debug != nil {
				o.Debug("openai retry %d in %s: %v", attempt, wait, lastErr)
			}
			if err := sleep(ctx, wait); err != nil {
				return "", fmt.Errorf("%w: %v", ErrRequest, err)
			}
		}
		if o.Debug != nil {
			o.Debug("openai request model=%s messages=%d", req.Model, len(chatReq.Messages))
		}
		resp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("%w: response has no choices", ErrRequest)
			}
			content := resp.Choices[0].Message.Content
			if strings.TrimSpace(content) == "" {
				return "", fmt.Errorf("%w: empty response", ErrRequest)
			}
			if o.Debug != nil {
				o.Debug("openai response %d bytes, usage=%d tokens", len(content), resp.Usage.TotalTokens)
			}
			return content, nil
		}
		lastErr = err
		if !retryableOpenAI(err) {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", ErrRequest, lastErr)
}

func retryableOpenAI(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}
