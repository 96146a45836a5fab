// Package httpapi exposes the messaging service as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/internal/messaging"
	"github.com/nexus-im/estatechat/store/conversation"
	"github.com/nexus-im/estatechat/store/message"
)

// Messenger is the slice of the messaging service the API serves.
type Messenger interface {
	ResolveConversation(ctx context.Context, callerID, otherID int64, listingID *int64) (*conversation.Conversation, bool, error)
	GetConversation(ctx context.Context, callerID int64, conversationID string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context, callerID int64, page, pageSize int) ([]messaging.ConversationSummary, error)
	ListMessages(ctx context.Context, callerID int64, conversationID string, page, pageSize int) ([]*message.Message, error)
	Send(ctx context.Context, callerID int64, conversationID, content string) (*message.Message, error)
	UnreadCount(ctx context.Context, callerID int64, conversationID string) (int, error)
	TotalUnread(ctx context.Context, callerID int64) (int, error)
	MarkMessageRead(ctx context.Context, callerID int64, messageID string) (*message.Message, error)
	MarkConversationRead(ctx context.Context, callerID int64, conversationID string) error
}

// TokenAuthenticator resolves a bearer token to a user id.
type TokenAuthenticator interface {
	Authenticate(token string) (int64, error)
}

type Server struct {
	messenger Messenger
	authn     TokenAuthenticator
	realtime  http.Handler
	log       *zap.Logger
}

// NewServer builds the API. realtime, when non-nil, is mounted at /ws.
func NewServer(messenger Messenger, authn TokenAuthenticator, realtime http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{messenger: messenger, authn: authn, realtime: realtime, log: log}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/conversations", s.api(s.handleResolveConversation))
	mux.Handle("GET /api/conversations", s.api(s.handleListConversations))
	mux.Handle("GET /api/conversations/{id}", s.api(s.handleGetConversation))
	mux.Handle("GET /api/conversations/{id}/messages", s.api(s.handleListMessages))
	mux.Handle("POST /api/conversations/{id}/messages", s.api(s.handleSend))
	mux.Handle("GET /api/conversations/{id}/unread", s.api(s.handleUnreadCount))
	mux.Handle("POST /api/conversations/{id}/read", s.api(s.handleMarkConversationRead))
	mux.Handle("POST /api/messages/{id}/read", s.api(s.handleMarkMessageRead))
	mux.Handle("GET /api/unread", s.api(s.handleTotalUnread))

	if s.realtime != nil {
		// Not wrapped: the upgrade needs the raw ResponseWriter.
		mux.Handle("GET /ws", s.realtime)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.log.Warn("health check write error", zap.Error(err))
		}
	})

	return mux
}

type callerHandler func(w http.ResponseWriter, r *http.Request, callerID int64)

// api wraps an authenticated handler with request logging.
func (s *Server) api(h callerHandler) http.Handler {
	return s.logRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := s.authenticate(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, callerID)
	}))
}

func (s *Server) authenticate(r *http.Request) (int64, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return 0, false
	}
	callerID, err := s.authn.Authenticate(token)
	if err != nil {
		return 0, false
	}
	return callerID, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
