package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

// Options tune a single generation call.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// Client invokes a generative model with a prompt and returns its full text
// reply. Implementations are stateless; credentials come from configuration.
//
// Failure codes: unavailable (network/5xx), rate_limited (429, Meta
// "retry_after" carries the suggested delay), deadline_exceeded (timeout),
// malformed (non-text body), cancelled (caller gave up).
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat-completion endpoint.
type HTTPClient struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewHTTPClient builds a client for the given provider URL and model.
func NewHTTPClient(url, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

var _ Client = (*HTTPClient)(nil)

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate posts the prompt and returns the model's reply text.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "marshal model request failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "build model request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return "", appErr.Wrap(err, appErr.CodeCancelled, "model request cancelled")
		case isTimeout(err):
			return "", appErr.Wrap(err, appErr.CodeDeadline, "model request timed out")
		}
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "model request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e := appErr.New(appErr.CodeRateLimited, "model provider rate limited")
		if d := retryAfter(resp); d > 0 {
			e = e.WithMeta("retry_after", d)
		}
		return "", e
	case resp.StatusCode >= 500:
		return "", appErr.New(appErr.CodeUnavailable, fmt.Sprintf("model provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", appErr.New(appErr.CodeMalformed, fmt.Sprintf("model provider returned %d: %s", resp.StatusCode, payload))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", appErr.Wrap(err, appErr.CodeMalformed, "decode model response failed")
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", appErr.New(appErr.CodeMalformed, "model response carried no text")
	}
	return out.Choices[0].Message.Content, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// RetryAfterOf returns the suggested retry delay attached to a rate-limit
// error, or zero when none was advertised.
func RetryAfterOf(err error) time.Duration {
	if v, ok := appErr.Meta(err, "retry_after"); ok {
		if d, ok := v.(time.Duration); ok {
			return d
		}
	}
	return 0
}
