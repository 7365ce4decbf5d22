package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/device"
	"github.com/banshee-data/brick-sorter/internal/kicker"
	"github.com/banshee-data/brick-sorter/internal/timeutil"
)

func TestEventHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewEventHub()
	id1, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(Event{Kind: EventKick})
	assert.Equal(t, EventKick, (<-ch1).Kind)
	assert.Equal(t, EventKick, (<-ch2).Kind)

	hub.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")
	assert.Equal(t, 1, hub.Subscribers())

	// unknown and repeated ids are ignored
	hub.Unsubscribe(id1)
	hub.Unsubscribe("nope")
	assert.Equal(t, 1, hub.Subscribers())
}

func TestEventHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewEventHub()
	_, ch := hub.Subscribe()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish(Event{Kind: EventKick})
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, int64(3), hub.Dropped())
}

func TestLoop_PublishesKickEvents(t *testing.T) {
	captureLogs(t)
	clock := timeutil.NewMockClock(epoch)
	state := debounce.NewShared("s2", 10, 3)
	for i := 0; i < 3; i++ {
		state.Write(color.Red)
	}
	act := device.NewSimKicker(0)
	loop := newTestLoop(t, state, act, clock)
	_, events := loop.Events().Subscribe()

	_, err := loop.Step()
	require.NoError(t, err)

	e := <-events
	assert.Equal(t, EventKick, e.Kind)
	require.NotNil(t, e.Report)
	assert.Equal(t, color.Red, e.Report.Category)
	assert.Equal(t, kicker.Left, e.Report.Direction)
	assert.Empty(t, e.Error)

	act.FailAfter(1)
	_, err = loop.Step()
	require.Error(t, err)

	e = <-events
	assert.Equal(t, EventKickFailed, e.Kind)
	assert.Contains(t, e.Error, "simulated motor fault")
}

func TestEventStream_Websocket(t *testing.T) {
	captureLogs(t)
	state := debounce.NewShared("s2", 10, 3)
	loop := newTestLoop(t, state, device.NewSimKicker(0), timeutil.NewMockClock(epoch))

	mux := http.NewServeMux()
	AttachAdminRoutes(mux, loop, []*debounce.Shared{state})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/debug/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hub := loop.Events()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Publish(Event{Kind: EventKickFailed, At: epoch, Error: "stalled"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventKickFailed, got.Kind)
	assert.Equal(t, "stalled", got.Error)
	assert.True(t, got.At.Equal(epoch))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
