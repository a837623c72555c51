package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"whiteboard-backend/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(id string, buffer int) *WSClient {
	return &WSClient{
		ID:      id,
		Message: make(chan []byte, buffer),
		done:    make(chan struct{}),
		log:     logrus.WithField("conn_id", id),
	}
}

func drain(t *testing.T, cl *WSClient) []outboundFrame {
	t.Helper()
	var frames []outboundFrame
	for {
		select {
		case raw := <-cl.Message:
			var f outboundFrame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

type outboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type capturePublisher struct {
	mu     sync.Mutex
	rooms  []string
	frames [][]byte
}

func (p *capturePublisher) Publish(roomID string, message []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, roomID)
	p.frames = append(p.frames, message)
}

func (p *capturePublisher) Close() error { return nil }

func TestHubGroupsRouteMessages(t *testing.T) {
	h := NewHub()
	a, b, c := testClient("a", 8), testClient("b", 8), testClient("c", 8)
	for _, cl := range []*WSClient{a, b, c} {
		h.addClient(cl)
	}
	h.JoinGroup("abc", "a")
	h.JoinGroup("abc", "b")
	h.JoinGroup("xyz", "c")

	h.SendToRoom("abc", EventCanvasCleared, CanvasClearedRes{UserID: "a", UserName: "Alice"})

	framesA := drain(t, a)
	require.Len(t, framesA, 1)
	assert.Equal(t, EventCanvasCleared, framesA[0].Event)
	assert.JSONEq(t, `{"userId":"a","userName":"Alice"}`, string(framesA[0].Data))
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))

	h.SendToRoomExcept("abc", "a", EventUsersUpdate, UsersUpdateRes{})
	assert.Empty(t, drain(t, a))
	assert.Len(t, drain(t, b), 1)

	h.SendToOne("c", EventCanvasState, ErrorRes{Error: ErrWhiteboardNotFound})
	framesC := drain(t, c)
	require.Len(t, framesC, 1)
	assert.JSONEq(t, `{"error":"Whiteboard not found"}`, string(framesC[0].Data))

	h.LeaveGroup("abc", "b")
	h.SendToRoom("abc", EventUsersUpdate, UsersUpdateRes{})
	assert.Len(t, drain(t, a), 1)
	assert.Empty(t, drain(t, b))
	assert.Equal(t, 1, h.GroupSize("abc"))

	h.SendToRoom("nobody", EventUsersUpdate, UsersUpdateRes{})
	h.SendToOne("unknown", EventUsersUpdate, UsersUpdateRes{})
}

func TestHubDropsWhenSendBufferIsFull(t *testing.T) {
	h := NewHub()
	slow := testClient("slow", 1)
	fast := testClient("fast", 8)
	h.addClient(slow)
	h.addClient(fast)
	h.JoinGroup("abc", "slow")
	h.JoinGroup("abc", "fast")

	for i := 0; i < 3; i++ {
		h.SendToRoom("abc", EventUsersUpdate, UsersUpdateRes{})
	}

	assert.Len(t, drain(t, slow), 1)
	assert.Len(t, drain(t, fast), 3)
}

func TestHubMirrorsRoomBroadcasts(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHub(WithPublisher(pub))
	h.addClient(testClient("a", 8))
	h.JoinGroup("abc", "a")

	h.SendToRoom("abc", EventUsersUpdate, UsersUpdateRes{})
	h.SendToOne("a", EventCanvasState, ErrorRes{Error: ErrWhiteboardNotFound})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"abc"}, pub.rooms)
	assert.Contains(t, string(pub.frames[0]), `"event":"users_update"`)
}

type recordingDispatcher struct {
	mu           sync.Mutex
	events       []string
	disconnected []string
}

func (d *recordingDispatcher) Dispatch(connID string, env Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, connID+":"+env.Event)
}

func (d *recordingDispatcher) Disconnect(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = append(d.disconnected, connID)
}

func (d *recordingDispatcher) snapshot() ([]string, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...), append([]string(nil), d.disconnected...)
}

func TestHubRunSerialisesDispatchAndCleansUp(t *testing.T) {
	h := NewHub()
	d := &recordingDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, d)

	cl := testClient("a", 8)
	require.True(t, h.register(cl))
	h.JoinGroup("abc", "a")

	for _, event := range []string{EventJoinRoom, EventDraw, EventClearCanvas} {
		require.True(t, h.dispatch(Inbound{ConnID: "a", Envelope: Envelope{Event: event}}))
	}
	require.Eventually(t, func() bool {
		events, _ := d.snapshot()
		return len(events) == 3
	}, time.Second, 5*time.Millisecond)

	h.unregister(cl)

	select {
	case _, open := <-cl.Message:
		assert.False(t, open, "send channel should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	events, gone := d.snapshot()
	assert.Equal(t, []string{"a:join_room", "a:draw", "a:clear_canvas"}, events)
	assert.Equal(t, []string{"a"}, gone)
	assert.Equal(t, 0, h.GroupSize("abc"))
	assert.Equal(t, 0, h.ConnectionCount())

	cancel()
	select {
	case <-h.Stopped():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, h.register(testClient("late", 1)))
}

// gatedDispatcher parks the hub inside a "hold" frame until gate is closed and
// reports "sync" frames, so tests can line up work behind a busy hub.
type gatedDispatcher struct {
	*Gateway
	gate    chan struct{}
	entered chan struct{}
	synced  chan struct{}
}

func (d *gatedDispatcher) Dispatch(connID string, env Envelope) {
	switch env.Event {
	case "hold":
		d.entered <- struct{}{}
		<-d.gate
	case "sync":
		d.synced <- struct{}{}
	default:
		d.Gateway.Dispatch(connID, env)
	}
}

func TestHubIgnoresFramesQueuedBehindDisconnect(t *testing.T) {
	join, err := json.Marshal(JoinRoomReq{RoomID: "abc", UserName: "Carol"})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		s := store.New()
		h := NewHub()
		d := &gatedDispatcher{
			Gateway: NewGateway(s, h),
			gate:    make(chan struct{}),
			entered: make(chan struct{}),
			synced:  make(chan struct{}),
		}
		ctx, cancel := context.WithCancel(context.Background())
		go h.Run(ctx, d)

		busy, carol := testClient("busy", 8), testClient("carol", 8)
		require.True(t, h.register(busy))
		require.True(t, h.register(carol))

		require.True(t, h.dispatch(Inbound{ConnID: "busy", Envelope: Envelope{Event: "hold"}}))
		<-d.entered

		require.True(t, h.dispatch(Inbound{ConnID: "carol", Envelope: Envelope{Event: EventJoinRoom, Data: join}}))
		unregistered := make(chan struct{})
		go func() {
			h.unregister(carol)
			close(unregistered)
		}()
		time.Sleep(time.Millisecond)
		close(d.gate)
		<-unregistered

		require.True(t, h.dispatch(Inbound{ConnID: "busy", Envelope: Envelope{Event: "sync"}}))
		<-d.synced

		if room, ok := s.Get("abc"); ok {
			assert.Zero(t, room.MemberCount(), "run %d left a member behind", i)
		}
		_, inRoom := d.CurrentRoom("carol")
		assert.False(t, inRoom)
		assert.Zero(t, h.GroupSize("abc"))
		assert.Equal(t, 1, h.ConnectionCount())

		cancel()
		<-h.Stopped()
	}
}
