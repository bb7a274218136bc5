package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const systemPrompt = "You are a helpful task assistant. Help users manage their tasks efficiently. " +
	"Use the provided tools to add, list, complete or delete tasks on the user's behalf."

// OpenAI is a responder backed by an OpenAI-compatible chat-completions
// endpoint with function calling.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates an OpenAI responder. Empty model and baseURL fall
// back to gpt-4o-mini against the public API.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Mode implements Responder.
func (o *OpenAI) Mode() string { return "openai" }

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

func toolDef(name, description, parameters string) apiTool {
	var t apiTool
	t.Type = "function"
	t.Function.Name = name
	t.Function.Description = description
	t.Function.Parameters = json.RawMessage(parameters)
	return t
}

var tools = []apiTool{
	toolDef("add_task", "Add a new task to the user's todo list.",
		`{"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"priority":{"type":"string","enum":["low","medium","high","critical"]}},"required":["title"]}`),
	toolDef("list_tasks", "List the user's tasks.",
		`{"type":"object","properties":{"status":{"type":"string","enum":["all","pending","completed"]}}}`),
	toolDef("complete_task", "Mark a task as completed.",
		`{"type":"object","properties":{"task_id":{"type":"integer"}},"required":["task_id"]}`),
	toolDef("delete_task", "Delete a task.",
		`{"type":"object","properties":{"task_id":{"type":"integer"}},"required":["task_id"]}`),
}

// Respond implements Responder by calling the chat-completions endpoint
// with the conversation history and the task tools.
func (o *OpenAI) Respond(ctx context.Context, _ string, history []Message, message string) (*Reply, error) {
	msgs := make([]apiMessage, 0, len(history)+2)
	msgs = append(msgs, apiMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, apiMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, apiMessage{Role: "user", Content: message})

	body, err := json.Marshal(map[string]any{
		"model":    o.model,
		"messages": msgs,
		"tools":    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := parsed.Choices[0].Message
	reply := &Reply{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode %s arguments: %w", tc.Function.Name, err)
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	if reply.Text == "" && len(reply.ToolCalls) > 0 {
		reply.Text = "Done."
	}
	return reply, nil
}
