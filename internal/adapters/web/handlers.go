package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"business-assistant/internal/app"
	"business-assistant/internal/dialogue"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler holds the ApplicationService, the chi router and the session store.
type Handler struct {
	svc      app.ApplicationService
	sessions *sessionStore
	log      zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log zerolog.Logger) http.Handler {
	h := &Handler{
		svc:      svc,
		sessions: newSessionStore(),
		log:      log,
	}
	h.sessions.startPurge(context.Background())

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)
	r.Post("/api/chat/message", h.chatMessage)
	r.Post("/api/chat/reset", h.chatReset)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

type chatMessageRequest struct {
	Text         string `json:"text"`
	SessionToken string `json:"session_token,omitempty"`
}

type chatMessageResponse struct {
	SessionToken string           `json:"session_token"`
	Replies      []dialogue.Reply `json:"replies"`
}

// chatMessage handles POST /api/chat/message. One assistant turn: the session token
// carries the conversation state; a missing or expired token starts a fresh
// conversation.
func (h *Handler) chatMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req chatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, r, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	token := req.SessionToken
	sess, found := h.sessions.get(token, userID)
	if !found {
		token = uuid.NewString()
		sess = chatSession{UserID: userID, State: dialogue.Idle()}
	}

	result := h.svc.HandleMessage(r.Context(), userID, sess.State, req.Text, sess.History)

	sess.State = result.State
	sess.History = append(sess.History, "Usuário: "+req.Text)
	for _, reply := range result.Replies {
		sess.History = append(sess.History, "Assistente: "+reply.Text)
	}
	h.sessions.put(token, sess)

	writeJSON(w, chatMessageResponse{SessionToken: token, Replies: result.Replies})
}

type chatResetRequest struct {
	SessionToken string `json:"session_token"`
}

// chatReset handles POST /api/chat/reset. Drops the session so the next message
// starts from a clean state.
func (h *Handler) chatReset(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromRequest(w, r); !ok {
		return
	}

	var req chatResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionToken != "" {
		h.sessions.delete(req.SessionToken)
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// userIDFromRequest reads the authenticated user from the X-User-ID header.
// The gateway in front of this service resolves real authentication; absent
// header means user 1 for local development.
func userIDFromRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 1, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid X-User-ID header", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v, writing the error response on
// failure. HTTP 413 when the body exceeds the RequestBodyLimit; 400 for all
// other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
