package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRequest wraps every failure to obtain a reply from the backend.
var ErrRequest = errors.New("model request failed")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one round-trip: system instructions, prior exchanges and the new user text.
type Request struct {
	Model   string
	System  string
	History []Message
	Prompt  string
}

// Messages flattens the request into the chat-completions message order.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: "user", Content: r.Prompt})
	return msgs
}

// Provider returns the raw assistant text for a request.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// DebugFunc is an optional debug logger that providers can use.
type DebugFunc func(format string, args ...any)

// Config selects and configures a backend.
type Config struct {
	Type    string // "openai" (default) or "anthropic"
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
	Debug   DebugFunc
}

// New builds the provider named by cfg.Type.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

const defaultBackoff = 2 * time.Second

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doWithRetry sends an HTTP request, retrying on 429 or 5xx up to retries times.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, payload []byte, retries int, backoff time.Duration, dbg DebugFunc) (*http.Response, error) {
	if dbg != nil {
		dbg("HTTP %s %s (%d bytes)", req.Method, req.URL.String(), len(payload))
	}
	for attempt := 0; ; attempt++ {
		req.Body = io.NopCloser(bytes.NewReader(payload))
		resp, err := client.Do(req)
		if err != nil {
			if dbg != nil {
				dbg("HTTP ERROR: %v", err)
			}
			return nil, err
		}
		if dbg != nil {
			dbg("HTTP RESPONSE: %d %s", resp.StatusCode, resp.Status)
		}
		if !retryableStatus(resp.StatusCode) || attempt >= retries {
			return resp, nil
		}
		resp.Body.Close()
		wait := backoff << attempt
		if dbg != nil {
			dbg("HTTP RETRY: waiting %s", wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}
