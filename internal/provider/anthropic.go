package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	anthropicMaxTok  = 4096
)

// Anthropic streams from the Messages API and joins the text deltas.
type Anthropic struct {
	APIKey  string
	BaseURL string
	Retries int
	Backoff time.Duration
	Debug   DebugFunc
	client  *http.Client
}

func NewAnthropic(cfg Config) *Anthropic {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = anthropicBaseURL
	}
	return &Anthropic{
		APIKey:  cfg.APIKey,
		BaseURL: base,
		Retries: cfg.Retries,
		Backoff: defaultBackoff,
		Debug:   cfg.Debug,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	out, err := a.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequest, err)
	}
	return out, nil
}

func (a *Anthropic) complete(ctx context.Context, req Request) (string, error) {
	var msgs []map[string]any
	for _, m := range req.Messages() {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, map[string]any{"role": m.Role, "content": m.Content})
	}
	body := map[string]any{
		"model":      req.Model,
		"max_tokens": anthropicMaxTok,
		"stream":     true,
		"messages":   msgs,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := doWithRetry(ctx, a.client, httpReq, payload, a.Retries, a.Backoff, a.Debug)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if a.Debug != nil {
			a.Debug("API ERROR BODY: %s", string(b))
		}
		return "", fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return a.readStream(resp.Body)
}

func (a *Anthropic) readStream(r io.Reader) (string, error) {
	var text strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	chunks := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		chunks++

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				text.WriteString(event.Delta.Text)
			}
		case "error":
			return "", fmt.Errorf("anthropic stream error (%s): %s", event.Error.Type, event.Error.Message)
		case "message_stop":
			if a.Debug != nil {
				a.Debug("STREAM DONE: %d chunks received", chunks)
			}
			if strings.TrimSpace(text.String()) == "" {
				return "", fmt.Errorf("empty response")
			}
			return text.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read error after %d chunks: %w", chunks, err)
	}
	return "", fmt.Errorf("stream ended without message_stop after %d chunks", chunks)
}
