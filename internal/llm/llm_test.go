package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(url string) Config {
	return Config{
		Provider: "openai",
		APIKey:   "test-key",
		BaseURL:  url + "/v1",
		Model:    "test-model",
		Timeout:  5 * time.Second,
	}
}

func TestChatClient_ChatWithTools_ToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req["model"])

		tools := req["tools"].([]any)
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "searchProductAndService", fn["name"])

		messages := req["messages"].([]any)
		require.Len(t, messages, 4)
		toolMsg := messages[3].(map[string]any)
		assert.Equal(t, "tool", toolMsg["role"])
		assert.Equal(t, "call_0", toolMsg["tool_call_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "searchProductAndService", "arguments": "{\"input\":\"crm\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := NewChatClient(newTestConfig(server.URL), logrus.New())

	messages := []Message{
		{Role: RoleSystem, Content: "policy"},
		{Role: RoleUser, Content: "find crm"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "searchProductAndService", Arguments: `{"input":"crm"}`}}},
		{Role: RoleTool, ToolCallID: "call_0", Content: ""},
	}
	tools := []ToolDescriptor{{
		Name:        "searchProductAndService",
		Description: "search",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}}

	resp, err := client.ChatWithTools(context.Background(), messages, tools)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "searchProductAndService", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"input":"crm"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 12, resp.PromptTokens)
}

func TestChatClient_ChatWithTools_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	client := NewChatClient(newTestConfig(server.URL), logrus.New())
	_, err := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion failed")
}

func TestChatClient_ChatWithTools_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewChatClient(cfg, logrus.New())

	_, err := client.ChatWithTools(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
}

func TestEmbedder_EmbedBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req["input"], 2)
		_, hasDims := req["dimensions"]
		assert.False(t, hasDims, "ada-style models must not receive dimensions")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5, 0.6]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}
			],
			"model": "text-embedding-ada-002"
		}`))
	}))
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Model = "text-embedding-ada-002"
	embedder := NewEmbedder(cfg, 3, logrus.New())

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, vectors[1])
}

func TestEmbedder_Embed_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestConfig(server.URL), 3, logrus.New())

	_, err := embedder.Embed(context.Background(), "a")
	assert.ErrorContains(t, err, "expected 3")
}

func TestEmbedder_EmbedBatch_Empty(t *testing.T) {
	embedder := NewEmbedder(newTestConfig("http://127.0.0.1:0"), 3, logrus.New())
	_, err := embedder.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}
