package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/config"
	"social-service/internal/repository/memory"
	"social-service/internal/token"
)

type wireEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func newGatewayServer(t *testing.T) (*httptest.Server, *token.Service) {
	t.Helper()
	e := newChatEnv(t, Options{})
	tokens := token.NewService(config.JWTConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessExpiry:  time.Hour,
		RefreshExpiry: time.Hour,
		Issuer:        "test",
	})
	auth := token.NewAuthenticator(tokens, memory.NewRevocationStore(), e.users)
	srv := httptest.NewServer(NewGateway(e.svc, auth, nil, nil))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func dial(t *testing.T, srv *httptest.Server, tokens *token.Service, userID string) *websocket.Conn {
	t.Helper()
	pair, err := tokens.IssueTokenPair(token.Subject{UserID: userID, Email: userID + "@x.com"})
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+pair.AccessToken)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestGatewayRejectsMissingToken(t *testing.T) {
	srv, _ := newGatewayServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayPrivateMessageRoundTrip(t *testing.T) {
	srv, tokens := newGatewayServer(t)

	x := dial(t, srv, tokens, "x")
	ack := read(t, x)
	assert.Equal(t, EventConnected, ack.Event)
	assert.Equal(t, "x", ack.Data["user"].(map[string]any)["_id"])

	require.NoError(t, x.WriteJSON(map[string]any{
		"event": EventSendPrivate,
		"data":  map[string]string{"text": "hello", "targetUserId": "y"},
	}))
	sent := read(t, x)
	assert.Equal(t, EventMessageSent, sent.Event)
	assert.Equal(t, "hello", sent.Data["text"])
	assert.Equal(t, "x", sent.Data["senderId"])

	require.NoError(t, x.WriteJSON(map[string]any{"event": EventGetGroupChat, "data": "missing"}))
	failed := read(t, x)
	assert.Equal(t, EventError, failed.Event)
	assert.Equal(t, "Invalid Group ID", failed.Data["message"])
}

func TestGatewayQueryTokenAndDisconnectNotice(t *testing.T) {
	srv, tokens := newGatewayServer(t)

	y := dial(t, srv, tokens, "y")
	read(t, y)

	pair, err := tokens.IssueTokenPair(token.Subject{UserID: "x"})
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?authorization=" + pair.AccessToken
	x, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, EventConnected, read(t, x).Event)
	require.NoError(t, x.Close())

	notice := read(t, y)
	assert.Equal(t, EventUserDisconnected, notice.Event)
	assert.Equal(t, "x", notice.Data["_id"])
}

func TestIDFrom(t *testing.T) {
	assert.Equal(t, "g1", idFrom([]byte(`"g1"`), "targetGroupId"))
	assert.Equal(t, "g2", idFrom([]byte(`{"targetGroupId":"g2"}`), "targetGroupId"))
	assert.Equal(t, "", idFrom([]byte(`42`), "targetGroupId"))
}
