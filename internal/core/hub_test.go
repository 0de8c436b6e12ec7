package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/betairc/internal/proto"
)

// queued returns the frames waiting in a pump-less client's outbox.
func queued(c *Client) []proto.Frame {
	var frames []proto.Frame
	for {
		select {
		case data := <-c.outbox:
			frames = append(frames, proto.Decode(data))
		default:
			return frames
		}
	}
}

func contents(frames []proto.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		switch {
		case f.Event != nil:
			out = append(out, f.Event.Content)
		case f.Response != nil:
			out = append(out, f.Response.Message)
		default:
			out = append(out, f.Text)
		}
	}
	return out
}

func registerAll(t *testing.T, h *Hub, names ...string) []*Client {
	t.Helper()

	clients := make([]*Client, 0, len(names))
	for _, name := range names {
		c := newTestClient("id-" + name)
		require.NoError(t, h.Register(c, name))
		clients = append(clients, c)
	}
	for _, c := range clients {
		drain(c)
	}
	return clients
}

func TestHubRegisterAnnouncesArrival(t *testing.T) {
	h := NewHub(WithServerName("TestNet"))
	alice := newTestClient("a")
	require.NoError(t, h.Register(alice, "alice"))

	got := contents(queued(alice))
	require.Len(t, got, 3)
	require.Contains(t, got[0], "Welcome to TestNet v"+Version)
	require.Contains(t, got[0], "There are 1 users online.")
	require.Equal(t, "alice has joined the server", got[1])
	require.Equal(t, "alice has joined #general", got[2])

	bob := newTestClient("b")
	require.NoError(t, h.Register(bob, "bob"))
	require.Equal(t, []string{"bob has joined the server", "bob has joined #general"}, contents(queued(alice)))

	require.ErrorIs(t, h.Register(newTestClient("c"), "bob"), ErrDuplicateUsername)
	require.Empty(t, queued(alice))
}

func TestHubChannelFanOutReachesOnlyMembers(t *testing.T) {
	h := NewHub()
	c := registerAll(t, h, "alice", "bob", "carol")
	alice, bob, carol := c[0], c[1], c[2]

	_, err := h.Join(alice, "#x")
	require.NoError(t, err)
	_, err = h.Join(bob, "x")
	require.NoError(t, err)
	drain(alice)
	drain(bob)
	drain(carol)

	h.SendToChannel("#x", proto.EncodeSystem("#x", "ping"), nil)
	require.Equal(t, []string{"ping"}, contents(queued(alice)))
	require.Equal(t, []string{"ping"}, contents(queued(bob)))
	require.Empty(t, queued(carol))

	h.SendToChannel("#x", proto.EncodeSystem("#x", "pong"), alice)
	require.Empty(t, queued(alice))
	require.Equal(t, []string{"pong"}, contents(queued(bob)))

	h.SendToChannel("#missing", proto.EncodeSystem("#missing", "void"), nil)
	require.Empty(t, queued(alice))
}

func TestHubPostEcho(t *testing.T) {
	for _, tc := range []struct {
		name string
		echo bool
	}{
		{"echo", true},
		{"no echo", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHub(WithEchoPosts(tc.echo))
			c := registerAll(t, h, "alice", "bob")
			alice, bob := c[0], c[1]

			channel, err := h.Post(alice, "hello")
			require.NoError(t, err)
			require.Equal(t, GeneralChannel, channel)

			got := queued(bob)
			require.Len(t, got, 1)
			require.Equal(t, &proto.Event{
				Sender:    "alice",
				Type:      proto.KindChannel,
				Recipient: GeneralChannel,
				Content:   "hello",
				Timestamp: got[0].Event.Timestamp,
			}, got[0].Event)

			if tc.echo {
				require.Equal(t, []string{"hello"}, contents(queued(alice)))
			} else {
				require.Empty(t, queued(alice))
			}
		})
	}
}

func TestHubPostWithoutChannel(t *testing.T) {
	h := NewHub()
	alice := registerAll(t, h, "alice")[0]

	require.NoError(t, h.Leave(alice, GeneralChannel))
	_, err := h.Post(alice, "anyone?")
	require.ErrorIs(t, err, ErrNoChannel)
}

func TestHubJoinSendsTopicAndMembers(t *testing.T) {
	h := NewHub()
	c := registerAll(t, h, "alice", "bob")
	alice, bob := c[0], c[1]

	_, err := h.Join(alice, "#x")
	require.NoError(t, err)
	require.Equal(t, []string{
		"alice has joined #x",
		"Topic for #x: Welcome to #x",
		"Users in #x: alice",
	}, contents(queued(alice)))

	info, err := h.Join(bob, "#x")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, info.Members)
	require.Equal(t, []string{"bob has joined #x"}, contents(queued(alice)))
	require.Equal(t, "Users in #x: alice, bob", contents(queued(bob))[2])

	require.NoError(t, h.Leave(bob, "#x"))
	require.Equal(t, []string{"bob has left #x"}, contents(queued(alice)))
	require.Empty(t, queued(bob))

	require.ErrorIs(t, h.Leave(bob, "#x"), ErrNotAMember)
}

func TestHubSendToUsername(t *testing.T) {
	h := NewHub()
	alice := registerAll(t, h, "alice")[0]

	require.True(t, h.SendToUsername("alice", proto.EncodeSystem("alice", "hi")))
	require.Equal(t, []string{"hi"}, contents(queued(alice)))
	require.False(t, h.SendToUsername("ghost", proto.EncodeSystem("ghost", "hi")))
}

func TestHubFullQueueDisconnectsOnlyThatRecipient(t *testing.T) {
	h := NewHub()
	c := registerAll(t, h, "alice", "bob")
	alice, bob := c[0], c[1]

	for alice.enqueue([]byte("filler")) == nil {
	}

	h.SendToChannel(GeneralChannel, proto.EncodeSystem(GeneralChannel, "news"), nil)

	select {
	case <-alice.Done():
	default:
		t.Fatal("slow client was not closed")
	}
	_, ok := h.Registry().FindByUsername("alice")
	require.False(t, ok)

	require.Equal(t, []string{"news", "alice has left the server."}, contents(queued(bob)))
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	h := NewHub()
	c := registerAll(t, h, "alice", "bob")
	alice, bob := c[0], c[1]

	h.Disconnect(alice, "test")
	h.Disconnect(alice, "test")

	require.Equal(t, []string{"alice has left the server."}, contents(queued(bob)))
	require.Equal(t, 1, h.Registry().Len())

	h.CloseAll("shutdown")
	require.Equal(t, 0, h.Registry().Len())
	select {
	case <-bob.Done():
	default:
		t.Fatal("client still open after CloseAll")
	}
}

func TestHubRenameNotifiesEveryone(t *testing.T) {
	h := NewHub()
	c := registerAll(t, h, "alice", "bob")
	alice, bob := c[0], c[1]

	require.NoError(t, h.Rename(alice, "alicia"))
	require.Equal(t, "alicia", alice.Username())
	require.Equal(t, []string{"alice is now known as alicia"}, contents(queued(bob)))
	require.Equal(t, []string{"alice is now known as alicia"}, contents(queued(alice)))
}
