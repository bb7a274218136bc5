package chat

import (
	"context"
	"strconv"
	"strings"
)

// Mock is the scripted responder used when no API key is configured. It
// pattern-matches the message against a small command vocabulary and
// emits the matching tool call.
type Mock struct{}

// Mode implements Responder.
func (Mock) Mode() string { return "mock" }

// Respond implements Responder.
func (Mock) Respond(_ context.Context, _ string, _ []Message, message string) (*Reply, error) {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	for _, prefix := range []string{"add task ", "add ", "remind me to ", "create task ", "create "} {
		if strings.HasPrefix(lower, prefix) {
			title := strings.TrimSpace(trimmed[len(prefix):])
			if title == "" {
				break
			}
			return &Reply{
				Text: "Added \"" + title + "\" to your list.",
				ToolCalls: []ToolCall{{
					Name: "add_task",
					Arguments: map[string]any{
						"title":    title,
						"priority": AnalyzePriority(title),
					},
				}},
			}, nil
		}
	}

	if strings.Contains(lower, "list") || strings.Contains(lower, "show") || strings.Contains(lower, "what") {
		return &Reply{
			Text:      "Here are your tasks:",
			ToolCalls: []ToolCall{{Name: "list_tasks", Arguments: map[string]any{}}},
		}, nil
	}

	for _, prefix := range []string{"complete ", "done ", "finish ", "mark "} {
		if strings.HasPrefix(lower, prefix) {
			if id, ok := firstNumber(lower); ok {
				return &Reply{
					Text:      "Marked task " + strconv.FormatInt(id, 10) + " as completed.",
					ToolCalls: []ToolCall{{Name: "complete_task", Arguments: map[string]any{"task_id": id}}},
				}, nil
			}
		}
	}

	for _, prefix := range []string{"delete ", "remove "} {
		if strings.HasPrefix(lower, prefix) {
			if id, ok := firstNumber(lower); ok {
				return &Reply{
					Text:      "Deleted task " + strconv.FormatInt(id, 10) + ".",
					ToolCalls: []ToolCall{{Name: "delete_task", Arguments: map[string]any{"task_id": id}}},
				}, nil
			}
		}
	}

	return &Reply{
		Text: "I can manage your todo list. Try: \"add buy milk\", \"show my tasks\", \"complete 3\" or \"delete 3\".",
	}, nil
}

// AnalyzePriority guesses a priority from keywords in the title.
func AnalyzePriority(title string) string {
	lower := strings.ToLower(title)
	for _, w := range []string{"urgent", "asap", "critical", "important", "high"} {
		if strings.Contains(lower, w) {
			return "high"
		}
	}
	for _, w := range []string{"low", "someday", "maybe", "optional"} {
		if strings.Contains(lower, w) {
			return "low"
		}
	}
	return "medium"
}

func firstNumber(s string) (int64, bool) {
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, ".,!?#")
		if n, err := strconv.ParseInt(f, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
