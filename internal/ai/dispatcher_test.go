package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletion(content, reasoning string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test",
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":              "assistant",
				"content":           content,
				"reasoning_content": reasoning,
			},
			"finish_reason": "stop",
		}},
	}
}

func openAIServer(t *testing.T, handle func(body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-1234", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, resp := handle(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatcherOpenAI(t *testing.T) {
	var got map[string]any
	srv := openAIServer(t, func(body map[string]any) (int, any) {
		got = body
		return http.StatusOK, chatCompletion("<think>hmm</think>你好", "")
	})

	cfg := testConfig("acc")
	cfg.BaseURL = srv.URL + "/v1"
	d := NewDispatcher(NewClientManager(time.Second))

	reply, err := d.Call(context.Background(), cfg, []Message{
		{Role: RoleSystem, Text: "sys"},
		{Role: RoleUser, Text: "hi"},
	}, 100, 0.7)

	require.NoError(t, err)
	assert.Equal(t, "你好", reply)
	assert.Equal(t, "gpt-4", got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	assert.NotContains(t, got, "thinking")
	assert.Len(t, got["messages"], 2)
}

func TestDispatcherOpenAIThinkingDisabled(t *testing.T) {
	var got map[string]any
	srv := openAIServer(t, func(body map[string]any) (int, any) {
		got = body
		return http.StatusOK, chatCompletion("ok", "")
	})

	cfg := testConfig("acc")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.Model = "glm-4.5"
	d := NewDispatcher(NewClientManager(time.Second))

	_, err := d.Call(context.Background(), cfg, []Message{{Role: RoleUser, Text: "hi"}}, 100, 0.1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "disabled"}, got["thinking"])
}

func TestDispatcherOpenAIReasoningOnly(t *testing.T) {
	srv := openAIServer(t, func(map[string]any) (int, any) {
		return http.StatusOK, chatCompletion("", "let me think")
	})

	cfg := testConfig("acc")
	cfg.BaseURL = srv.URL + "/v1"
	d := NewDispatcher(NewClientManager(time.Second))

	reply, err := d.Call(context.Background(), cfg, []Message{{Role: RoleUser, Text: "hi"}}, 100, 0.7)
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.Empty(t, reply)
}

func TestDispatcherOpenAIStatusError(t *testing.T) {
	srv := openAIServer(t, func(map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "boom", "type": "server_error"},
		}
	})

	cfg := testConfig("acc")
	cfg.BaseURL = srv.URL + "/v1"
	d := NewDispatcher(NewClientManager(time.Second))

	_, err := d.Call(context.Background(), cfg, []Message{{Role: RoleUser, Text: "hi"}}, 100, 0.7)
	require.ErrorIs(t, err, ErrBackend)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
}

func TestDispatcherOpenAITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig("acc")
	cfg.BaseURL = srv.URL + "/v1"
	d := NewDispatcher(NewClientManager(50 * time.Millisecond))

	_, err := d.Call(context.Background(), cfg, []Message{{Role: RoleUser, Text: "hi"}}, 100, 0.7)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestDispatcherUnavailable(t *testing.T) {
	d := NewDispatcher(NewClientManager(time.Second))

	cfg := testConfig("acc")
	cfg.Enabled = false
	_, err := d.Call(context.Background(), cfg, nil, 100, 0.7)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func dashScopeConfig() AccountConfig {
	return AccountConfig{
		AccountID: "acc",
		Enabled:   true,
		APIKey:    "sk-test-1234",
		BaseURL:   "https://dashscope.aliyuncs.com/api/v1/apps/app42/",
		Model:     "custom",
	}
}

func TestDispatcherDashScope(t *testing.T) {
	var gotPath string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "Bearer sk-test-1234", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output":{"text":"  好的  "},"request_id":"r1"}`))
	}))
	t.Cleanup(srv.Close)

	m := NewClientManager(time.Second)
	d := NewDispatcher(m, WithDashScopeEndpoint(srv.URL))

	reply, err := d.Call(context.Background(), dashScopeConfig(), []Message{
		{Role: RoleSystem, Text: "sys"},
		{Role: RoleUser, Text: "q"},
	}, 100, 0.1)

	require.NoError(t, err)
	assert.Equal(t, "好的", reply)
	assert.Equal(t, "/api/v1/apps/app42/completion", gotPath)
	assert.Equal(t, map[string]any{"prompt": "sys\n\n用户问题：q\n\n请直接回答用户的问题："}, got["input"])
	params := got["parameters"].(map[string]any)
	assert.EqualValues(t, 100, params["max_tokens"])
	assert.NotContains(t, params, "thinking")
	assert.Contains(t, got, "debug")
	assert.Equal(t, 0, m.Len(), "dashscope must not build cached clients")
}

func TestDispatcherDashScopeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusBadRequest, `{"code":"InvalidParameter"}`},
		{"no output", http.StatusOK, `{"request_id":"r1"}`},
		{"no text", http.StatusOK, `{"output":{"finish_reason":"stop"}}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewDispatcher(NewClientManager(time.Second), WithDashScopeEndpoint(srv.URL))
			_, err := d.Call(context.Background(), dashScopeConfig(), []Message{{Role: RoleUser, Text: "q"}}, 100, 0.1)

			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.Status)
		})
	}
}

func TestDispatcherDashScopeThinkingAndConfigError(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output":{"text":"ok"}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewDashScopeClient(srv.URL, time.Second)
	cfg := dashScopeConfig()
	cfg.Model = "glm-4.5-custom"

	_, err := client.Complete(context.Background(), cfg, []Message{{Role: RoleUser, Text: "q"}}, 10, 0.1)
	require.NoError(t, err)
	params := got["parameters"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "disabled"}, params["thinking"])

	cfg.BaseURL = "https://dashscope.aliyuncs.com/api/v1/"
	_, err = client.Complete(context.Background(), cfg, []Message{{Role: RoleUser, Text: "q"}}, 10, 0.1)
	assert.ErrorIs(t, err, ErrConfig)
}
