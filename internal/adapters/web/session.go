package web

import (
	"context"
	"sync"
	"time"

	"business-assistant/internal/dialogue"
)

// chatSession holds the per-conversation memory the dialogue machine needs
// between turns: the state and a short transcript for oracle context.
type chatSession struct {
	UserID    int
	State     dialogue.ConversationState
	History   []string
	UpdatedAt time.Time
}

const (
	sessionTTL     = 30 * time.Minute
	sessionHistory = 20
)

// sessionStore is a thread-safe in-memory store with TTL expiry. Sessions are
// keyed by an opaque token the client echoes back each turn.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]chatSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]chatSession)}
}

func (s *sessionStore) get(token string, userID int) (chatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || sess.UserID != userID {
		return chatSession{}, false
	}
	if time.Since(sess.UpdatedAt) > sessionTTL {
		delete(s.sessions, token)
		return chatSession{}, false
	}
	return sess, true
}

func (s *sessionStore) put(token string, sess chatSession) {
	sess.UpdatedAt = time.Now()
	if len(sess.History) > sessionHistory {
		sess.History = sess.History[len(sess.History)-sessionHistory:]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sess
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// startPurge evicts expired sessions every 5 minutes until ctx is cancelled.
func (s *sessionStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				for token, sess := range s.sessions {
					if time.Since(sess.UpdatedAt) > sessionTTL {
						delete(s.sessions, token)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
