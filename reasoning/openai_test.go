package reasoning_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/courtroom-api/reasoning"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(b)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, completion("  Your Honor, my client objects.  "))
	}))
	defer srv.Close()

	c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL+"/"), reasoning.WithModel("test-model"))
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), reasoning.Request{
		SystemFraming: "You are counsel.",
		Directive:     "Object.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your Honor, my client objects.", out)

	assert.Equal(t, "test-model", got["model"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "You are counsel.", messages[0].(map[string]interface{})["content"])
	assert.Contains(t, messages[1].(map[string]interface{})["content"], "Object.")
	assert.Nil(t, got["response_format"])
}

func TestOpenAIClient_GenerateStructuredSendsSchema(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, completion(`{"probability":0.5}`))
	}))
	defer srv.Close()

	c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL))
	require.NoError(t, err)

	schema := &reasoning.Schema{
		Name:       "outcome",
		Type:       reasoning.TypeObject,
		Properties: map[string]*reasoning.Schema{"probability": {Type: reasoning.TypeNumber}},
		Required:   []string{"probability"},
	}
	out, err := c.GenerateStructured(context.Background(), "predict", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"probability":0.5}`, string(out))

	format := got["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]interface{})
	assert.Equal(t, "outcome", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestOpenAIClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, reasoning.ErrRateLimited},
		{"server error", http.StatusBadGateway, reasoning.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = c.Generate(context.Background(), reasoning.Request{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completion("   "))
	}))
	defer srv.Close()

	c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), reasoning.Request{})
	assert.ErrorIs(t, err, reasoning.ErrEmptyResponse)
}

func TestOpenAIClient_NoRetriesByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), reasoning.Request{})
	assert.ErrorIs(t, err, reasoning.ErrRateLimited)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_RetriesRateLimits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, completion("ok"))
	}))
	defer srv.Close()

	c, err := reasoning.NewOpenAIClient("sk-test", reasoning.WithBaseURL(srv.URL), reasoning.WithMaxRetries(1))
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), reasoning.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := reasoning.NewOpenAIClient("")
	assert.EqualError(t, err, "api key is required")
}
