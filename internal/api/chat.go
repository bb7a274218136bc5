package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"todoflow/pkg/chat"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req struct {
		Message        string `json:"message"`
		ConversationID int64  `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.deps.Chat.ProcessMessage(r.Context(), user, req.ConversationID, req.Message)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if result.ToolCalls == nil {
		result.ToolCalls = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}

	convs, err := s.deps.ChatStore.Conversations(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if convs == nil {
		convs = []chat.ConversationInfo{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	msgs, err := s.deps.ChatStore.Messages(r.Context(), user, id)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
