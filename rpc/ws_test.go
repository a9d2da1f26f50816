package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"sentechain/core/events"
)

func TestWebsocketStreamsCommittedEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.http)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?types=lending."
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.server.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)
	env.seed()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var rec events.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, events.TypeLendingDeposited, rec.Event.Type)
	require.Equal(t, lender.String(), rec.Event.Attr("lender"))
	require.NotZero(t, rec.Height)
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub(nil)
	updates, cancel := hub.Subscribe()
	defer cancel()
	for i := 0; i < wsBuffer+1; i++ {
		hub.Emit(events.Record{Height: uint64(i + 1), Event: events.ToTypes(events.ModulePaused{Module: "token"})})
	}
	require.Equal(t, 0, hub.Len())
	count := 0
	for range updates {
		count++
	}
	require.Equal(t, wsBuffer, count)
}

func TestHubFiltersByPrefix(t *testing.T) {
	hub := NewHub(nil)
	updates, cancel := hub.Subscribe("reputation.")
	defer cancel()
	hub.Emit(events.Record{Event: events.ToTypes(events.ModulePaused{Module: "token"})})
	hub.Emit(events.Record{Event: events.ToTypes(events.ProfileCreated{Score: 50})})
	rec := <-updates
	require.Equal(t, events.TypeReputationProfileCreated, rec.Event.Type)
	require.Empty(t, updates)
}
