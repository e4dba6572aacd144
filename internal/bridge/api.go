// ABOUTME: HTTP API handlers for the widget and the Teams webhook
// ABOUTME: Maps relay errors onto status codes and JSON error bodies

package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/filoffee/teambridge/internal/auth"
	"github.com/filoffee/teambridge/internal/hub"
	"github.com/filoffee/teambridge/internal/relay"
	"github.com/filoffee/teambridge/internal/teams"
)

// webhookAck is the body Teams expects back from an outgoing webhook.
const webhookAck = "Message received by the website"

// SendRequest is the JSON request body for POST /send-to-teams.
type SendRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// SendResponse is the JSON response for POST /send-to-teams.
type SendResponse struct {
	Success bool `json:"success"`
}

// MessageEntry is one history entry in GET /get-messages responses.
// User mirrors the widget wire format: true when the internal user
// authored the text.
type MessageEntry struct {
	User      bool   `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// MessagesResponse is the JSON response for GET /get-messages/{userId}.
type MessagesResponse struct {
	Messages []MessageEntry `json:"messages"`
}

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// routes builds the HTTP handler tree. The widget endpoints go through
// auth middleware when a JWT secret is configured; the webhook endpoint
// never does, Teams cannot present a bearer token.
func (b *Bridge) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", b.handleHealth)
	mux.HandleFunc("/health/ready", b.handleReady)
	mux.HandleFunc("/receive-from-teams", b.handleReceiveFromTeams)
	mux.HandleFunc("/ws", b.handleWebsocket)

	if b.verifier != nil {
		authed := auth.Middleware(b.verifier)
		mux.Handle("/send-to-teams", authed(http.HandlerFunc(b.handleSendToTeams)))
		mux.Handle("/get-messages/", authed(http.HandlerFunc(b.handleGetMessages)))
	} else {
		mux.HandleFunc("/send-to-teams", b.handleSendToTeams)
		mux.HandleFunc("/get-messages/", b.handleGetMessages)
	}

	return b.corsMiddleware(mux)
}

// handleSendToTeams handles POST /send-to-teams.
func (b *Bridge) handleSendToTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	if b.verifier != nil && !auth.RequireUser(w, r, req.UserID) {
		return
	}

	if err := b.relay.Send(r.Context(), req.UserID, req.Message); err != nil {
		switch {
		case errors.Is(err, relay.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "message and userId are required", "")
		case errors.Is(err, relay.ErrUnknownUser):
			writeError(w, http.StatusNotFound, "unknown user", req.UserID)
		default:
			// The error chain wraps the webhook call and can carry the
			// webhook URL, which is a credential. The relay already logged
			// it; the widget only learns that the relay failed.
			writeError(w, http.StatusInternalServerError, "failed to relay message to Teams", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, SendResponse{Success: true})
}

// handleReceiveFromTeams handles POST /receive-from-teams, the target of
// the Teams outgoing webhook. Teams retries on non-2xx, so duplicates
// are acked like first deliveries.
func (b *Bridge) handleReceiveFromTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload teams.InboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	_, err := b.relay.HandleInbound(r.Context(), relay.InboundMessage{
		ConversationID: payload.Conversation.ID,
		Text:           payload.PlainText(),
	})
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrDuplicateDelivery):
			// fall through to the ack below
		case errors.Is(err, relay.ErrMalformedPayload):
			writeError(w, http.StatusBadRequest, "malformed payload", err.Error())
			return
		default:
			writeError(w, http.StatusInternalServerError, "could not route message to a user", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": webhookAck})
}

// handleGetMessages handles GET /get-messages/{userId}.
func (b *Bridge) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/get-messages/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "userId is required", "")
		return
	}

	if b.verifier != nil && !auth.RequireUser(w, r, userID) {
		return
	}

	history, err := b.relay.Recent(userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown user", userID)
		return
	}

	resp := MessagesResponse{Messages: make([]MessageEntry, 0, len(history))}
	for _, m := range history {
		resp.Messages = append(resp.Messages, MessageEntry{
			User:      m.FromUser(),
			Text:      m.Text,
			Timestamp: m.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWebsocket upgrades GET /ws and hands the connection to the hub.
func (b *Bridge) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return b.originAllowed(r.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	hub.NewClient(b.hub, conn)
}

// corsMiddleware applies the configured origin allowlist and answers
// preflight requests.
func (b *Bridge) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && b.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed checks origin against the configured allowlist. An
// empty allowlist or a "*" entry allows everything; browsers on the
// same host send no Origin header at all, which is also allowed.
func (b *Bridge) originAllowed(origin string) bool {
	if origin == "" || len(b.config.Server.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range b.config.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
