package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIRespondParsesToolCalls(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{
						"function": {
							"name": "add_task",
							"arguments": "{\"title\":\"buy milk\",\"priority\":\"high\"}"
						}
					}]
				}
			}]
		}`))
	}))
	defer ts.Close()

	o := NewOpenAI("sk-test", "test-model", ts.URL)
	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
	reply, err := o.Respond(context.Background(), "alice", history, "add buy milk")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotBody["model"])
	// system prompt + two history turns + the new message
	assert.Len(t, gotBody["messages"], 4)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "add_task", reply.ToolCalls[0].Name)
	assert.Equal(t, "buy milk", reply.ToolCalls[0].Arguments["title"])
	assert.Equal(t, "high", reply.ToolCalls[0].Arguments["priority"])
	assert.Equal(t, "Done.", reply.Text)
}

func TestOpenAIRespondPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"You have 3 tasks."}}]}`))
	}))
	defer ts.Close()

	o := NewOpenAI("sk-test", "", ts.URL)
	reply, err := o.Respond(context.Background(), "alice", nil, "how many tasks?")
	require.NoError(t, err)
	assert.Equal(t, "You have 3 tasks.", reply.Text)
	assert.Empty(t, reply.ToolCalls)
}

func TestOpenAIRespondErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}))
		defer ts.Close()

		_, err := NewOpenAI("sk-test", "", ts.URL).Respond(context.Background(), "u", nil, "hi")
		assert.ErrorContains(t, err, "status 429")
	})

	t.Run("no choices", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer ts.Close()

		_, err := NewOpenAI("sk-test", "", ts.URL).Respond(context.Background(), "u", nil, "hi")
		assert.ErrorContains(t, err, "no choices")
	})

	t.Run("malformed tool arguments", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"name":"add_task","arguments":"{broken"}}]}}]}`))
		}))
		defer ts.Close()

		_, err := NewOpenAI("sk-test", "", ts.URL).Respond(context.Background(), "u", nil, "hi")
		assert.ErrorContains(t, err, "add_task")
	})
}

func TestNewOpenAIDefaults(t *testing.T) {
	o := NewOpenAI("sk-test", "", "")
	assert.Equal(t, "gpt-4o-mini", o.model)
	assert.Equal(t, "https://api.openai.com/v1", o.baseURL)
}
