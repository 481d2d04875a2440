package aiplan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanContent = `{"schedule":[{"day":1,"activities":["Louvre","Lunch","Seine walk"]}]}`

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return string(b)
}

func newTestClient(t *testing.T, baseURL string) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	delays := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

func planChatRequest() ChatRequest {
	return ChatRequest{
		SystemMessage: BuildSystemPrompt(),
		UserMessage:   "Plan a trip.",
		SchemaName:    PlanSchemaName,
		Schema:        PlanResponseSchema(),
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestSetTimeoutRejectsNonPositive(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1:0")
	err := c.SetTimeout(0)
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestSendChatRequiresMessageAndSchema(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1:0")

	_, err := c.SendChat(context.Background(), ChatRequest{Schema: PlanResponseSchema()})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.SendChat(context.Background(), ChatRequest{UserMessage: "hi"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSendChatSuccess(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, completionBody(validPlanContent))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	resp, err := c.SendChat(context.Background(), planChatRequest())
	require.NoError(t, err)
	assert.JSONEq(t, validPlanContent, string(resp.Data))
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	rf, ok := gotPayload["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", rf["type"])
	js, ok := rf["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, PlanSchemaName, js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestSendChatRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionBody(validPlanContent))
	}))
	defer srv.Close()

	c, delays := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	require.Len(t, *delays, 2)
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])
}

func TestSendChatExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindAPI, KindOf(err))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendChatRateLimitHonorsRetryAfter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody(validPlanContent))
	}))
	defer srv.Close()

	c, delays := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.NoError(t, err)
	require.Len(t, *delays, 1)
	assert.GreaterOrEqual(t, (*delays)[0], 5*time.Second)
}

func TestSendChatAuthErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSendChatSchemaViolationNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		fmt.Fprint(w, completionBody(`{"itinerary":[]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSendChatUnparseableContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("here is your plan: day 1 ..."))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSendChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSendChatTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, completionBody(validPlanContent))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	c.retry = func(int, error) (time.Duration, bool) { return 0, false }
	require.NoError(t, c.SetTimeout(50*time.Millisecond))

	_, err := c.SendChat(context.Background(), planChatRequest())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.True(t, Retryable(err))
}
