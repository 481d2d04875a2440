package aiplan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL    = "https://api.groq.com/openai/v1"
	defaultTimeout    = 30 * time.Second
	maxAttempts       = 3
	initialRetryDelay = time.Second
)

// RetryPolicy decides whether a failed attempt should be retried and
// how long to wait first. attempt is 1-based and counts the attempt
// that just failed.
type RetryPolicy func(attempt int, err error) (time.Duration, bool)

// DefaultRetryPolicy retries rate limits, timeouts, network failures
// and 5xx upstream errors up to three attempts total. The delay honors
// a Retry-After hint when present, otherwise doubles from one second.
func DefaultRetryPolicy(attempt int, err error) (time.Duration, bool) {
	if attempt >= maxAttempts || !Retryable(err) {
		return 0, false
	}
	if d, ok := RetryAfter(err); ok {
		return d, true
	}
	return initialRetryDelay << (attempt - 1), true
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one structured-output completion call. Either
// UserMessage or Messages must be set; Schema is always required.
type ChatRequest struct {
	SystemMessage string
	UserMessage   string
	Messages      []ChatMessage
	Model         string
	SchemaName    string
	Schema        *huma.Schema
	Temperature   *float64
	MaxTokens     *int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse carries the schema-validated content of the first
// choice plus the raw upstream body.
type ChatResponse struct {
	Data  json.RawMessage
	Raw   json.RawMessage
	Usage *Usage
}

// ChatClient is the outbound surface the planner depends on.
type ChatClient interface {
	SendChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ClientConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	HTTPClient   *http.Client
	Retry        RetryPolicy
	Logger       zerolog.Logger
}

// Client talks to an OpenAI-compatible chat-completions endpoint with
// strict json_schema response formatting.
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	temperature  float64
	maxTokens    int
	timeout      time.Duration
	http         *http.Client
	retry        RetryPolicy
	logger       zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, newError(KindConfiguration, "API key is required and cannot be empty")
	}
	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		http:         cfg.HTTPClient,
		retry:        cfg.Retry,
		logger:       cfg.Logger,
		sleep:        sleepCtx,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.defaultModel == "" {
		c.defaultModel = backendModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.retry == nil {
		c.retry = DefaultRetryPolicy
	}
	return c, nil
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return newError(KindConfiguration, "timeout must be greater than 0")
	}
	c.timeout = d
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendChat performs the completion call with retries, then validates
// the reply's first-choice content against the request schema.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.UserMessage == "" && len(req.Messages) == 0 {
		return nil, newError(KindValidation, "either UserMessage or Messages must be provided")
	}
	if req.Schema == nil {
		return nil, newError(KindValidation, "response schema is required for structured output")
	}

	payload, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, wrapError(KindValidation, err, "failed to encode request payload")
	}

	var raw []byte
	for attempt := 1; ; attempt++ {
		raw, err = c.do(ctx, payload)
		if err == nil {
			break
		}
		delay, retry := c.retry(attempt, err)
		if !retry {
			return nil, err
		}
		c.logger.Warn().Int("attempt", attempt).Dur("delay", delay).Err(err).
			Msg("retrying chat completion")
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, wrapError(KindTimeout, serr, "canceled while waiting to retry")
		}
	}

	return validateChatResponse(raw, req.Schema)
}

func (c *Client) buildPayload(req ChatRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := req.Messages
	if len(messages) == 0 {
		if req.SystemMessage != "" {
			messages = append(messages, ChatMessage{Role: "system", Content: req.SystemMessage})
		}
		messages = append(messages, ChatMessage{Role: "user", Content: req.UserMessage})
	}

	name := req.SchemaName
	if name == "" {
		name = "Response"
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.maxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"strict": true,
				"schema": req.Schema,
			},
		},
		"temperature": temperature,
	}
	if maxTokens > 0 {
		payload["max_tokens"] = maxTokens
	}
	return payload
}

func (c *Client) do(ctx context.Context, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, wrapError(KindNetwork, err, "failed to build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapError(KindTimeout, err,
				fmt.Sprintf("request timed out after %s", c.timeout))
		}
		return nil, wrapError(KindNetwork, err, "network request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(KindNetwork, err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyHTTPError(resp, body)
	}
	return body, nil
}

func classifyHTTPError(resp *http.Response, body []byte) *Error {
	message := extractErrorMessage(body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if message == "" {
			message = "Authentication failed. Please check your API key."
		}
		return &Error{Kind: KindAuthentication, Status: resp.StatusCode, Message: message}
	case http.StatusTooManyRequests:
		if message == "" {
			message = "Rate limit exceeded. Please try again later."
		}
		e := &Error{Kind: KindRateLimit, Status: resp.StatusCode, Message: message}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			e.RetryAfter = time.Duration(s) * time.Second
		}
		return e
	case http.StatusBadRequest:
		if message == "" {
			message = "Invalid request parameters"
		}
		return &Error{Kind: KindValidation, Status: resp.StatusCode, Message: message}
	default:
		if message == "" {
			message = fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		}
		return &Error{Kind: KindAPI, Status: resp.StatusCode, Message: message}
	}
}

func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return envelope.Message
}

func validateChatResponse(raw []byte, schema *huma.Schema) (*ChatResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &apiResponse); err != nil {
		return nil, wrapError(KindValidation, err, "invalid API response: expected an object")
	}
	if len(apiResponse.Choices) == 0 {
		return nil, newError(KindValidation, "invalid API response: no choices returned")
	}
	content := apiResponse.Choices[0].Message.Content
	if content == "" {
		return nil, newError(KindValidation, "invalid API response: no message content")
	}

	if err := validateJSON(schema, []byte(content)); err != nil {
		return nil, err
	}

	return &ChatResponse{
		Data:  json.RawMessage(content),
		Raw:   raw,
		Usage: apiResponse.Usage,
	}, nil
}
