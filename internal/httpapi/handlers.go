package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/internal/messaging"
	"github.com/nexus-im/estatechat/store/conversation"
)

type errorResponse struct {
	Error string `json:"error"`
}

type resolveRequest struct {
	UserID    int64  `json:"user_id"`
	ListingID *int64 `json:"listing_id,omitempty"`
}

type resolveResponse struct {
	Conversation *conversation.Conversation `json:"conversation"`
	Created      bool                       `json:"created"`
}

type sendRequest struct {
	Content string `json:"content"`
}

type unreadResponse struct {
	Unread int `json:"unread"`
}

func (s *Server) handleResolveConversation(w http.ResponseWriter, r *http.Request, callerID int64) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	convo, created, err := s.messenger.ResolveConversation(r.Context(), callerID, req.UserID, req.ListingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resolveResponse{Conversation: convo, Created: created})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, callerID int64) {
	page, pageSize, ok := paging(w, r)
	if !ok {
		return
	}

	summaries, err := s.messenger.ListConversations(r.Context(), callerID, page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, callerID int64) {
	convo, err := s.messenger.GetConversation(r.Context(), callerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convo)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, callerID int64) {
	page, pageSize, ok := paging(w, r)
	if !ok {
		return
	}

	messages, err := s.messenger.ListMessages(r.Context(), callerID, r.PathValue("id"), page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, callerID int64) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg, err := s.messenger.Send(r.Context(), callerID, r.PathValue("id"), req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, callerID int64) {
	count, err := s.messenger.UnreadCount(r.Context(), callerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Unread: count})
}

func (s *Server) handleTotalUnread(w http.ResponseWriter, r *http.Request, callerID int64) {
	count, err := s.messenger.TotalUnread(r.Context(), callerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Unread: count})
}

func (s *Server) handleMarkConversationRead(w http.ResponseWriter, r *http.Request, callerID int64) {
	if err := s.messenger.MarkConversationRead(r.Context(), callerID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request, callerID int64) {
	msg, err := s.messenger.MarkMessageRead(r.Context(), callerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// paging reads page and page_size. Absent values are passed through as zero
// and normalized by the service.
func paging(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page must be an integer"})
			return 0, 0, false
		}
	}
	if v := q.Get("page_size"); v != "" {
		if pageSize, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page_size must be an integer"})
			return 0, 0, false
		}
	}
	return page, pageSize, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, messaging.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, messaging.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
