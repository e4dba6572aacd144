// ABOUTME: End-to-end tests for the HTTP API surface
// ABOUTME: Runs the full bridge against a stub Teams webhook

package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filoffee/teambridge/internal/auth"
	"github.com/filoffee/teambridge/internal/config"
)

type bridgeFixture struct {
	bridge  *Bridge
	server  *httptest.Server
	webhook *webhookStub
}

// webhookStub plays the Teams incoming webhook. It records posted texts
// and can echo a conversation id or fail on demand.
type webhookStub struct {
	mu       sync.Mutex
	posts    []string
	echoID   string
	failWith int
	server   *httptest.Server
}

func newWebhookStub(t *testing.T) *webhookStub {
	t.Helper()
	s := &webhookStub{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failWith != 0 {
			w.WriteHeader(s.failWith)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var msg struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &msg)
		s.posts = append(s.posts, msg.Text)
		if s.echoID != "" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"conversation": map[string]string{"id": s.echoID}})
			return
		}
		w.Write([]byte("1"))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *webhookStub) lastPost() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.posts) == 0 {
		return ""
	}
	return s.posts[len(s.posts)-1]
}

func (s *webhookStub) setEcho(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoID = id
}

func (s *webhookStub) setFailure(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

func newBridgeFixture(t *testing.T, mutate func(*config.Config)) *bridgeFixture {
	t.Helper()

	webhook := newWebhookStub(t)
	cfg := &config.Config{}
	cfg.Teams.WebhookURL = webhook.server.URL
	cfg.Server.HTTPAddr = ":0"
	cfg.Relay.Timeout = 2 * time.Second
	cfg.Relay.DedupeTTL = time.Minute
	cfg.Relay.HistoryLimit = 50
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(b.dedupe.Close)

	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)

	return &bridgeFixture{
		bridge:  b,
		server:  srv,
		webhook: webhook,
	}
}

func (f *bridgeFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSendToTeamsSuccess(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hello", UserID: "user1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[SendResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, "Message from Titan (Titan@example.com): hello", f.webhook.lastPost())
}

func TestSendToTeamsValidation(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/send-to-teams", SendRequest{UserID: "user1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendToTeamsUnknownUser(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi", UserID: "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "unknown user", body.Error)
	assert.Empty(t, f.webhook.lastPost(), "webhook should not be called for unknown users")
}

func TestSendToTeamsWebhookFailure(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.webhook.setFailure(http.StatusInternalServerError)

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi", UserID: "user1"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "failed to relay message to Teams", body.Error)
	assert.Empty(t, body.Details, "internal error detail must not reach the widget")
}

func TestSendToTeamsFailureNeverLeaksWebhookURL(t *testing.T) {
	// A webhook URL is a capability URL: its path carries the secret
	// tokens. A transport error embeds the full URL in the error chain,
	// and none of that may surface in the client-facing response.
	f := newBridgeFixture(t, func(cfg *config.Config) {
		cfg.Teams.WebhookURL = "http://127.0.0.1:1/webhookb2/secret-token-path"
	})

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi", UserID: "user1"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token-path")
	assert.NotContains(t, string(raw), "127.0.0.1:1")
	assert.NotContains(t, string(raw), "webhook")
}

func TestReceiveFromTeamsRoundTrip(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.webhook.setEcho("19:thread;messageid=1")

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "question", UserID: "user2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.postJSON(t, "/receive-from-teams", map[string]any{
		"text":         "<p>the answer</p>",
		"conversation": map[string]string{"id": "19:thread;messageid=2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ack := decodeBody[map[string]string](t, resp)
	assert.Equal(t, webhookAck, ack["text"])

	histResp, err := http.Get(f.server.URL + "/get-messages/user2")
	require.NoError(t, err)
	defer histResp.Body.Close()
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	hist := decodeBody[MessagesResponse](t, histResp)
	require.Len(t, hist.Messages, 2)
	assert.True(t, hist.Messages[0].User)
	assert.Equal(t, "question", hist.Messages[0].Text)
	assert.False(t, hist.Messages[1].User)
	assert.Equal(t, "the answer", hist.Messages[1].Text)
}

func TestReceiveFromTeamsMentionFallback(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/receive-from-teams", map[string]any{
		"text":         "<p>@Titan: are you there</p>",
		"conversation": map[string]string{"id": "19:newthread;messageid=1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	histResp, err := http.Get(f.server.URL + "/get-messages/user1")
	require.NoError(t, err)
	defer histResp.Body.Close()
	hist := decodeBody[MessagesResponse](t, histResp)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "are you there", hist.Messages[0].Text)
}

func TestReceiveFromTeamsMalformed(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/receive-from-teams", map[string]any{"type": "message"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReceiveFromTeamsUnresolved(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp := f.postJSON(t, "/receive-from-teams", map[string]any{
		"text":         "<p>nobody mapped this</p>",
		"conversation": map[string]string{"id": "19:stranger;messageid=1"},
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "could not route message to a user", body.Error)
	assert.Contains(t, body.Details, "19:stranger")
}

func TestReceiveFromTeamsDuplicateAcked(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.webhook.setEcho("19:dup")

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi", UserID: "user3"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := map[string]any{
		"text":         "retry me",
		"conversation": map[string]string{"id": "19:dup;messageid=9"},
	}
	resp = f.postJSON(t, "/receive-from-teams", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.postJSON(t, "/receive-from-teams", payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "redelivery should be acked, not retried")

	histResp, err := http.Get(f.server.URL + "/get-messages/user3")
	require.NoError(t, err)
	defer histResp.Body.Close()
	hist := decodeBody[MessagesResponse](t, histResp)
	assert.Len(t, hist.Messages, 2, "duplicate must not append to history")
}

func TestGetMessagesUnknownUser(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/get-messages/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newBridgeFixture(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://widget.internal"}
	})

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/send-to-teams", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://widget.internal")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://widget.internal", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	f := newBridgeFixture(t, func(cfg *config.Config) {
		cfg.Auth.JWTSecret = "test-secret"
	})

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "hi", UserID: "user1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	token, err := verifier.Generate("user1", time.Hour)
	require.NoError(t, err)

	raw, _ := json.Marshal(SendRequest{Message: "hi", UserID: "user1"})
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/send-to-teams", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	authResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authResp.Body.Close()
	assert.Equal(t, http.StatusOK, authResp.StatusCode)

	// A valid token for someone else must not let you post as user2.
	raw, _ = json.Marshal(SendRequest{Message: "hi", UserID: "user2"})
	req, err = http.NewRequest(http.MethodPost, f.server.URL+"/send-to-teams", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	crossResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer crossResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, crossResp.StatusCode)
}

func TestWebsocketDeliveryEndToEnd(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.webhook.setEcho("19:live")

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join", "userId": "user1"}))
	require.Eventually(t, func() bool {
		return f.bridge.hub.Members("user1") == 1
	}, time.Second, 10*time.Millisecond)

	resp := f.postJSON(t, "/send-to-teams", SendRequest{Message: "map me", UserID: "user1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.postJSON(t, "/receive-from-teams", map[string]any{
		"text":         "<p>pushed live</p>",
		"conversation": map[string]string{"id": "19:live;messageid=3"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "chat message", frame["type"])
	assert.Equal(t, false, frame["user"])
	assert.Equal(t, "pushed live", frame["text"])
}

func TestHealthEndpoints(t *testing.T) {
	f := newBridgeFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ready")
}
