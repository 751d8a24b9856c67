package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/revcraft/revcraft/internal/session"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
	webSearchTool    = "web_search_20250305"
)

// Config configures the Anthropic client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Anthropic calls the Messages API.
type Anthropic struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic validates cfg and returns a client.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	a := &Anthropic{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if a.baseURL == "" {
		a.baseURL = DefaultBaseURL
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 5 * time.Minute}
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return a, nil
}

// Model returns the model name requests are sent to.
func (a *Anthropic) Model() string {
	return a.model
}

type messagesRequest struct {
	Model       string            `json:"model"`
	System      string            `json:"system,omitempty"`
	Messages    []session.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature *float64          `json:"temperature,omitempty"`
	Tools       []toolSpec        `json:"tools,omitempty"`
}

type toolSpec struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends one Messages API request. Text blocks of the reply are
// concatenated; tool-use and search-result blocks are ignored.
func (a *Anthropic) Invoke(ctx context.Context, messages []session.Message, systemPrompt string, opts Options) (*Response, error) {
	req := messagesRequest{
		Model:     a.model,
		System:    systemPrompt,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		req.Temperature = &temp
	}
	if opts.WebSearch {
		req.Tools = []toolSpec{{Type: webSearchTool, Name: "web_search", MaxUses: opts.MaxSearches}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &APIError{Kind: ErrBadRequest, Message: fmt.Sprintf("encoding request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Kind: ErrBadRequest, Message: fmt.Sprintf("building request: %v", err)}
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("content-type", "application/json")

	a.logger.DebugContext(ctx, "invoking model",
		"model", a.model,
		"messages", len(messages),
		"web_search", opts.WebSearch,
		"max_tokens", req.MaxTokens,
	)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &APIError{Kind: ErrTransport, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: ErrTransport, Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Kind:       kindForStatus(resp.StatusCode),
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("retry-after")),
		}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Type = errResp.Error.Type
			apiErr.Message = errResp.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		a.logger.WarnContext(ctx, "model call failed",
			"status", resp.StatusCode,
			"type", apiErr.Type,
			"error", apiErr.Message,
		)
		return nil, apiErr
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &APIError{Kind: ErrTransport, Status: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	a.logger.DebugContext(ctx, "model call complete",
		"input_tokens", parsed.Usage.InputTokens,
		"output_tokens", parsed.Usage.OutputTokens,
		"stop_reason", parsed.StopReason,
		"elapsed", time.Since(start),
	)

	return &Response{
		Text:       sb.String(),
		Usage:      parsed.Usage,
		StopReason: parsed.StopReason,
	}, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Describe renders err for the operator, naming the failure kind.
func Describe(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}
