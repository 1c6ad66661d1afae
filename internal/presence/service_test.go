package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelchat/kestrel/internal/presence"
	"github.com/kestrelchat/kestrel/internal/pubsub"
)

func TestService_TracksSessions(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	svc := presence.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, bridge))

	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})
	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s2",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool { return svc.Count() == 2 },
		time.Second, 5*time.Millisecond)

	// An anonymous session is counted but not listed as an online user.
	assert.Empty(t, svc.Online())

	presence.Publish(ctx, bridge, presence.TopicDisconnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool { return svc.Count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestService_AuthenticationNamesTheSession(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	svc := presence.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, bridge))

	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})
	presence.Publish(ctx, bridge, presence.TopicAuthenticated, presence.Event{
		SessionID: "s1",
		Username:  "alice",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool {
		online := svc.Online()
		return len(online) == 1 && online[0] == "alice"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, svc.Count())
}

func TestService_LateConnectKeepsTheAuthenticatedUsername(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	svc := presence.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, bridge))

	// The authenticated event lands first.
	presence.Publish(ctx, bridge, presence.TopicAuthenticated, presence.Event{
		SessionID: "s1",
		Username:  "alice",
		Timestamp: time.Now().UTC(),
	})
	require.Eventually(t, func() bool {
		online := svc.Online()
		return len(online) == 1 && online[0] == "alice"
	}, time.Second, 5*time.Millisecond)

	// Now the straggling connect for s1, fenced by a second connect on
	// the same topic: once s2 is counted, s1's connect has been handled.
	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})
	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s2",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool { return svc.Count() == 2 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, svc.Online(),
		"the connect event must not erase the username")
}

func TestService_DisconnectBeforeConnectLeavesNoEntry(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	svc := presence.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, bridge))

	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s0",
		Timestamp: time.Now().UTC(),
	})
	require.Eventually(t, func() bool { return svc.Count() == 1 },
		time.Second, 5*time.Millisecond)

	// s1's disconnect arrives before its connect; s0's disconnect fences
	// the topic so we know s1's was handled once the count drops.
	presence.Publish(ctx, bridge, presence.TopicDisconnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})
	presence.Publish(ctx, bridge, presence.TopicDisconnected, presence.Event{
		SessionID: "s0",
		Timestamp: time.Now().UTC(),
	})
	require.Eventually(t, func() bool { return svc.Count() == 0 },
		time.Second, 5*time.Millisecond)

	// The straggling connect for s1 must be dropped; s2 proves it was
	// processed.
	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	})
	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s2",
		Username:  "bob",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool {
		online := svc.Online()
		return svc.Count() == 1 && len(online) == 1 && online[0] == "bob"
	}, time.Second, 5*time.Millisecond)
}

func TestService_OnlineListsAuthenticatedUsers(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	svc := presence.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, bridge))

	presence.Publish(ctx, bridge, presence.TopicConnected, presence.Event{
		SessionID: "s1",
		Username:  "alice",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool { return svc.Count() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, svc.Online())
}
