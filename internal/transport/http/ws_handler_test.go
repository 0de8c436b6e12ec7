package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/betairc/internal/proto"
)

func dialWS(t *testing.T, ctx context.Context, env *testEnv) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func sendText(t *testing.T, ctx context.Context, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(text)))
}

// readUntil reads frames until one satisfies match.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()

	for {
		var frame map[string]any
		require.NoError(t, wsjson.Read(ctx, conn, &frame))
		if match(frame) {
			return frame
		}
	}
}

func hasContent(prefix string) func(map[string]any) bool {
	return func(f map[string]any) bool {
		content, _ := f["content"].(string)
		return strings.HasPrefix(content, prefix)
	}
}

func TestWebSocketHandshakeAndChannelPost(t *testing.T) {
	env := startTestServer(t, false)
	ctx := testContext(t)

	connA := dialWS(t, ctx, env)
	connB := dialWS(t, ctx, env)

	sendText(t, ctx, connA, "alice")
	readUntil(t, ctx, connA, hasContent("Welcome to BetaIRC"))
	sendText(t, ctx, connB, `{"username":"bob"}`)
	readUntil(t, ctx, connB, hasContent("Welcome to BetaIRC"))

	sendText(t, ctx, connA, "hi there")

	var event proto.Event
	for event.Type != proto.KindChannel {
		require.NoError(t, wsjson.Read(ctx, connB, &event))
	}
	require.Equal(t, "alice", event.Sender)
	require.Equal(t, "#general", event.Recipient)
	require.Equal(t, "hi there", event.Content)
}

func TestWebSocketCommandErrors(t *testing.T) {
	env := startTestServer(t, false)
	ctx := testContext(t)

	conn := dialWS(t, ctx, env)
	sendText(t, ctx, conn, "alice")
	readUntil(t, ctx, conn, hasContent("Welcome to"))

	sendText(t, ctx, conn, "/msg ghost hello")
	frame := readUntil(t, ctx, conn, func(f map[string]any) bool { return f["code"] != nil })
	require.Equal(t, proto.CodeNotFound, frame["code"])
	require.Equal(t, "User ghost not found.", frame["message"])
}

func TestWebSocketRejectsDuplicateAndCloses(t *testing.T) {
	env := startTestServer(t, false)
	ctx := testContext(t)

	first := dialWS(t, ctx, env)
	sendText(t, ctx, first, "alice")
	readUntil(t, ctx, first, hasContent("Welcome to"))

	second := dialWS(t, ctx, env)
	sendText(t, ctx, second, "alice")

	_, data, err := second.Read(ctx)
	require.NoError(t, err)
	var resp proto.Response
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Equal(t, proto.CodeError, resp.Code)

	_, _, err = second.Read(ctx)
	require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestWebSocketQuitAnnouncesDeparture(t *testing.T) {
	env := startTestServer(t, false)
	ctx := testContext(t)

	alice := dialWS(t, ctx, env)
	sendText(t, ctx, alice, "alice")
	readUntil(t, ctx, alice, hasContent("Welcome to"))
	bob := dialWS(t, ctx, env)
	sendText(t, ctx, bob, "bob")
	readUntil(t, ctx, bob, hasContent("Welcome to"))

	sendText(t, ctx, alice, "/quit later")
	frame := readUntil(t, ctx, bob, hasContent("has quit: later"))
	require.Equal(t, "alice", frame["sender"])
	readUntil(t, ctx, bob, hasContent("alice has left the server."))

	var err error
	for err == nil {
		_, _, err = alice.Read(ctx)
	}
	require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	require.Equal(t, 1, env.hub.Registry().Len())
}

func TestHandlerServesWebSocketBesideAPI(t *testing.T) {
	env := startTestServer(t, false)
	ctx := testContext(t)

	conn := dialWS(t, ctx, env)
	sendText(t, ctx, conn, "alice")
	frame := readUntil(t, ctx, conn, hasContent("Welcome to BetaIRC"))
	require.Equal(t, "alice", frame["recipient"])

	var users []UserResponse
	require.Equal(t, http.StatusOK, getJSON(t, env, "/api/users", &users))
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].Username)

	sendText(t, ctx, conn, "/whois alice")
	frame = readUntil(t, ctx, conn, hasContent("User: alice"))
	require.Equal(t, string(proto.KindSystem), frame["type"])
}
