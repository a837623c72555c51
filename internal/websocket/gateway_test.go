package websocket

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	event   string
	payload any
}

// recordingBroadcaster keeps room groups like the hub does and records what
// each connection would have received.
type recordingBroadcaster struct {
	groups map[string]map[string]bool
	inbox  map[string][]sent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		groups: make(map[string]map[string]bool),
		inbox:  make(map[string][]sent),
	}
}

func (b *recordingBroadcaster) SendToRoom(roomID, event string, payload any) {
	b.SendToRoomExcept(roomID, "", event, payload)
}

func (b *recordingBroadcaster) SendToRoomExcept(roomID, excluded, event string, payload any) {
	for connID := range b.groups[roomID] {
		if connID == excluded {
			continue
		}
		b.inbox[connID] = append(b.inbox[connID], sent{event: event, payload: payload})
	}
}

func (b *recordingBroadcaster) SendToOne(connID, event string, payload any) {
	b.inbox[connID] = append(b.inbox[connID], sent{event: event, payload: payload})
}

func (b *recordingBroadcaster) JoinGroup(roomID, connID string) {
	if b.groups[roomID] == nil {
		b.groups[roomID] = make(map[string]bool)
	}
	b.groups[roomID][connID] = true
}

func (b *recordingBroadcaster) LeaveGroup(roomID, connID string) {
	delete(b.groups[roomID], connID)
}

func (b *recordingBroadcaster) events(connID string) []string {
	var out []string
	for _, s := range b.inbox[connID] {
		out = append(out, s.event)
	}
	return out
}

func (b *recordingBroadcaster) last(connID, event string) (any, bool) {
	msgs := b.inbox[connID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].event == event {
			return msgs[i].payload, true
		}
	}
	return nil, false
}

func (b *recordingBroadcaster) reset() {
	b.inbox = make(map[string][]sent)
}

func newTestGateway() (*Gateway, *store.Store, *recordingBroadcaster) {
	s := store.New()
	out := newRecordingBroadcaster()
	n := 0
	g := NewGateway(s, out, WithEventIDs(func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	}))
	return g, s, out
}

func penPayload() *model.DrawingPayload {
	return &model.DrawingPayload{
		Type:   "pen",
		Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
	}
}

func memberNames(members []model.Member) []string {
	var out []string
	for _, m := range members {
		out = append(out, m.DisplayName)
	}
	return out
}

func TestAliceAndBobScenario(t *testing.T) {
	g, s, out := newTestGateway()

	g.Join("conn-a", "abc", "Alice")
	payload, ok := out.last("conn-a", EventCanvasState)
	require.True(t, ok)
	state := payload.(model.RoomState)
	assert.Equal(t, "abc", state.ID)
	assert.Empty(t, state.History)
	assert.Equal(t, []string{"Alice"}, memberNames(state.Members))

	out.reset()
	g.Join("conn-b", "abc", "Bob")

	payload, ok = out.last("conn-b", EventCanvasState)
	require.True(t, ok)
	state = payload.(model.RoomState)
	assert.Empty(t, state.History)
	assert.Equal(t, []string{"Alice", "Bob"}, memberNames(state.Members))

	payload, ok = out.last("conn-a", EventUserJoined)
	require.True(t, ok)
	joined := payload.(UserPresenceRes)
	assert.Equal(t, "conn-b", joined.UserID)
	assert.Equal(t, "Bob", joined.UserName)
	_, ok = out.last("conn-b", EventUserJoined)
	assert.False(t, ok, "joiner should not be told about its own join")

	for _, conn := range []string{"conn-a", "conn-b"} {
		payload, ok = out.last(conn, EventUsersUpdate)
		require.True(t, ok)
		assert.Equal(t, []string{"Alice", "Bob"}, memberNames(payload.(UsersUpdateRes).Users))
	}

	out.reset()
	g.Draw("conn-a", "abc", penPayload())

	for _, conn := range []string{"conn-a", "conn-b"} {
		payload, ok = out.last(conn, EventDrawing)
		require.True(t, ok, conn)
		drawing := payload.(DrawingRes)
		assert.Equal(t, "conn-a", drawing.UserID)
		assert.Equal(t, model.KindPen, drawing.DrawingObject.Kind)
		assert.Equal(t, "ev-1", drawing.DrawingObject.ID)
	}

	state, ok = s.State("abc")
	require.True(t, ok)
	assert.Len(t, state.History, 1)
}

func TestJoinReplaysHistoryInOrder(t *testing.T) {
	g, _, out := newTestGateway()

	g.Join("conn-a", "abc", "Alice")
	for i := 0; i < 5; i++ {
		g.Draw("conn-a", "abc", penPayload())
	}

	g.Join("conn-b", "abc", "Bob")
	payload, ok := out.last("conn-b", EventCanvasState)
	require.True(t, ok)
	history := payload.(model.RoomState).History
	require.Len(t, history, 5)
	for i, ev := range history {
		assert.Equal(t, fmt.Sprintf("ev-%d", i+1), ev.ID)
	}
}

func TestJoinAutoCreatesRoomOnce(t *testing.T) {
	g, s, _ := newTestGateway()

	g.Join("conn-a", "xyz", "Alice")
	room, ok := s.Get("xyz")
	require.True(t, ok)
	assert.Equal(t, "Room xyz", room.Name)
	assert.Equal(t, 1, s.Count())

	g.Join("conn-b", "xyz", "Bob")
	room, _ = s.Get("xyz")
	assert.Equal(t, 2, room.MemberCount())
	assert.Equal(t, 1, s.Count())
}

func TestJoinWithoutRoomIDIsIgnored(t *testing.T) {
	g, s, out := newTestGateway()

	g.Join("conn-a", "", "Alice")

	assert.Equal(t, 0, s.Count())
	assert.Empty(t, out.inbox)
}

func TestJoinWithoutNameUsesFallback(t *testing.T) {
	g, s, _ := newTestGateway()

	g.Join("abcdef123", "abc", "  ")

	room, _ := s.Get("abc")
	m, ok := room.Member("abcdef123")
	require.True(t, ok)
	assert.Equal(t, "User abcdef", m.DisplayName)
}

func TestJoiningAnotherRoomLeavesTheFirst(t *testing.T) {
	g, s, out := newTestGateway()

	g.Join("conn-a", "one", "Alice")
	g.Join("conn-b", "one", "Bob")
	out.reset()

	g.Join("conn-a", "two", "Alice")

	one, _ := s.Get("one")
	assert.Equal(t, 1, one.MemberCount())
	payload, ok := out.last("conn-b", EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, "Alice", payload.(UserPresenceRes).UserName)

	current, ok := g.CurrentRoom("conn-a")
	require.True(t, ok)
	assert.Equal(t, "two", current)
}

func TestDrawIsDeliveredToSender(t *testing.T) {
	g, _, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	out.reset()

	g.Draw("conn-a", "abc", penPayload())

	assert.Equal(t, []string{EventDrawing}, out.events("conn-a"))
}

func TestInvalidDrawsAreDropped(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	out.reset()

	g.Draw("conn-a", "", penPayload())
	g.Draw("conn-a", "abc", nil)
	g.Draw("conn-a", "abc", &model.DrawingPayload{Type: "spray"})
	g.Draw("conn-a", "missing", penPayload())

	assert.Empty(t, out.inbox)
	state, _ := s.State("abc")
	assert.Empty(t, state.History)
	_, ok := s.Get("missing")
	assert.False(t, ok, "draw must not create rooms")
}

func TestLeaveStopsDelivery(t *testing.T) {
	g, _, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	g.Join("conn-b", "abc", "Bob")
	out.reset()

	g.Leave("conn-b", "abc")

	payload, ok := out.last("conn-a", EventUserLeft)
	require.True(t, ok)
	left := payload.(UserPresenceRes)
	assert.Equal(t, "conn-b", left.UserID)
	assert.Equal(t, "Bob", left.UserName)
	assert.Equal(t, []string{"Alice"}, memberNames(left.Users))
	assert.Equal(t, []string{EventUserLeft, EventUsersUpdate}, out.events("conn-a"))
	assert.Empty(t, out.inbox["conn-b"])

	out.reset()
	g.Draw("conn-a", "abc", penPayload())
	g.ClearCanvas("conn-a", "abc")
	assert.Empty(t, out.inbox["conn-b"])

	_, ok = g.CurrentRoom("conn-b")
	assert.False(t, ok)
}

func TestLeaveWithoutRoomIDIsNoop(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	out.reset()

	g.Leave("conn-a", "")

	room, _ := s.Get("abc")
	assert.Equal(t, 1, room.MemberCount())
	assert.Empty(t, out.inbox)
}

func TestClearOnEmptyRoomStillNotifies(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	out.reset()

	g.ClearCanvas("conn-a", "abc")

	payload, ok := out.last("conn-a", EventCanvasCleared)
	require.True(t, ok)
	assert.Equal(t, CanvasClearedRes{UserID: "conn-a", UserName: "Alice"}, payload)
	state, _ := s.State("abc")
	assert.Empty(t, state.History)
}

func TestClearByNonMemberNamesTheSender(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	g.Join("conn-b", "xyz", "Bob")
	out.reset()

	g.ClearCanvas("conn-b", "abc")
	payload, ok := out.last("conn-a", EventCanvasCleared)
	require.True(t, ok)
	assert.Equal(t, CanvasClearedRes{UserID: "conn-b", UserName: "Bob"}, payload)

	s.GetOrCreate("idle", RoomNameFor("idle"))
	out.JoinGroup("idle", "observer")
	g.ClearCanvas("stranger-123456", "idle")
	payload, ok = out.last("observer", EventCanvasCleared)
	require.True(t, ok)
	assert.Equal(t, model.FallbackDisplayName("stranger-123456"), payload.(CanvasClearedRes).UserName)
}

func TestClearRemovesHistory(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	g.Draw("conn-a", "abc", penPayload())
	g.Draw("conn-a", "abc", penPayload())

	g.ClearCanvas("conn-a", "abc")
	g.ClearCanvas("conn-a", "missing")

	state, _ := s.State("abc")
	assert.Empty(t, state.History)
	_, ok := out.last("conn-a", EventCanvasCleared)
	assert.True(t, ok)
}

func TestGetCanvasStateRepliesOnlyToRequester(t *testing.T) {
	g, _, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	g.Join("conn-b", "abc", "Bob")
	out.reset()

	g.GetCanvasState("conn-a", "abc")
	assert.Equal(t, []string{EventCanvasState}, out.events("conn-a"))
	assert.Empty(t, out.inbox["conn-b"])

	g.GetCanvasState("conn-a", "missing")
	payload, _ := out.last("conn-a", EventCanvasState)
	assert.Equal(t, ErrorRes{Error: "Whiteboard not found"}, payload)

	out.reset()
	g.GetCanvasState("conn-a", "")
	assert.Empty(t, out.inbox)
}

func TestDisconnectBehavesLikeLeave(t *testing.T) {
	g, s, out := newTestGateway()
	g.Join("conn-a", "abc", "Alice")
	g.Join("conn-b", "abc", "Bob")
	out.reset()

	g.Disconnect("conn-b")

	room, _ := s.Get("abc")
	assert.Equal(t, 1, room.MemberCount())
	assert.Equal(t, []string{EventUserLeft, EventUsersUpdate}, out.events("conn-a"))

	out.reset()
	g.Disconnect("conn-b")
	g.Disconnect("never-joined")
	assert.Empty(t, out.inbox)
}

func TestDispatchDecodesEnvelopes(t *testing.T) {
	g, s, out := newTestGateway()

	frame := func(event string, data any) Envelope {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		return Envelope{Event: event, Data: raw}
	}

	g.Dispatch("conn-a", frame(EventJoinRoom, JoinRoomReq{RoomID: "abc", UserName: "Alice"}))
	g.Dispatch("conn-a", frame(EventDraw, map[string]any{
		"roomId":      "abc",
		"drawingData": map[string]any{"type": "circle", "x": 10, "y": 10, "radius": 5},
	}))
	g.Dispatch("conn-a", frame(EventUndo, RoomReq{RoomID: "abc"}))
	g.Dispatch("conn-a", frame("bogus", RoomReq{RoomID: "abc"}))
	g.Dispatch("conn-a", Envelope{Event: EventDraw, Data: json.RawMessage(`{"roomId":`)})
	g.Dispatch("conn-a", Envelope{Event: EventLeaveRoom})

	state, ok := s.State("abc")
	require.True(t, ok)
	require.Len(t, state.History, 1)
	assert.Equal(t, model.KindCircle, state.History[0].Kind)
	assert.Equal(t, []string{EventCanvasState, EventUsersUpdate, EventDrawing}, out.events("conn-a"))

	g.Dispatch("conn-a", frame(EventLeaveRoom, RoomReq{RoomID: "abc"}))
	room, _ := s.Get("abc")
	assert.Equal(t, 0, room.MemberCount())
}

func TestJoinStampsMemberWithGatewayClock(t *testing.T) {
	s := store.New()
	at := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	g := NewGateway(s, newRecordingBroadcaster(), WithGatewayClock(func() time.Time { return at }))

	g.Join("conn-a", "abc", "Alice")

	room, _ := s.Get("abc")
	m, _ := room.Member("conn-a")
	assert.Equal(t, at, m.JoinedAt)
}
