package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"

	"github.com/sirupsen/logrus"
)

type session struct {
	roomID   string
	userName string
}

// Gateway turns inbound real-time events into store mutations and broadcasts.
// It is not safe for concurrent use; the hub calls it from its run loop only.
type Gateway struct {
	store      *store.Store
	out        Broadcaster
	sessions   map[string]*session
	now        func() time.Time
	newEventID func() string
	log        *logrus.Entry
}

type GatewayOption func(*Gateway)

func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.now = now
	}
}

func WithEventIDs(newID func() string) GatewayOption {
	return func(g *Gateway) {
		g.newEventID = newID
	}
}

func NewGateway(s *store.Store, out Broadcaster, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:      s,
		out:        out,
		sessions:   make(map[string]*session),
		now:        time.Now,
		newEventID: model.NewEventID,
		log:        logrus.WithField("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func RoomNameFor(roomID string) string {
	return "Room " + roomID
}

// CurrentRoom reports the room a connection last joined, if any.
func (g *Gateway) CurrentRoom(connID string) (string, bool) {
	sess, ok := g.sessions[connID]
	if !ok || sess.roomID == "" {
		return "", false
	}
	return sess.roomID, true
}

func (g *Gateway) Dispatch(connID string, env Envelope) {
	entry := g.log.WithFields(logrus.Fields{"conn_id": connID, "event": env.Event})

	switch env.Event {
	case EventJoinRoom:
		var req JoinRoomReq
		if !decode(env.Data, &req, entry) {
			return
		}
		g.Join(connID, req.RoomID, req.UserName)

	case EventLeaveRoom:
		var req RoomReq
		if !decode(env.Data, &req, entry) {
			return
		}
		g.Leave(connID, req.RoomID)

	case EventDraw:
		var req DrawReq
		if !decode(env.Data, &req, entry) {
			return
		}
		g.Draw(connID, req.RoomID, req.DrawingData)

	case EventClearCanvas:
		var req RoomReq
		if !decode(env.Data, &req, entry) {
			return
		}
		g.ClearCanvas(connID, req.RoomID)

	case EventGetCanvasState:
		var req RoomReq
		if !decode(env.Data, &req, entry) {
			return
		}
		g.GetCanvasState(connID, req.RoomID)

	case EventUndo, EventRedo:
		entry.Debug("history navigation is not supported, ignoring")

	default:
		entry.Warn("unknown event, dropping")
	}
}

func decode(data json.RawMessage, v any, entry *logrus.Entry) bool {
	if len(data) == 0 {
		entry.Warn("missing payload, dropping")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		entry.WithError(err).Warn("undecodable payload, dropping")
		return false
	}
	return true
}

func (g *Gateway) Join(connID, roomID, userName string) {
	if roomID == "" {
		g.log.WithField("conn_id", connID).Warn("join_room without roomId")
		return
	}

	if current, ok := g.CurrentRoom(connID); ok && current != roomID {
		g.removeFromRoom(connID, current)
	}

	if _, created := g.store.GetOrCreate(roomID, RoomNameFor(roomID)); created {
		g.log.WithField("room_id", roomID).Info("whiteboard created on join")
	}

	name := strings.TrimSpace(userName)
	if name == "" {
		name = model.FallbackDisplayName(connID)
	}

	g.out.JoinGroup(roomID, connID)
	members, ok := g.store.AddMember(roomID, model.Member{
		ConnectionID: connID,
		DisplayName:  name,
		JoinedAt:     g.now(),
	})
	if !ok {
		// an admin DELETE runs on an HTTP worker and can land in between
		g.out.LeaveGroup(roomID, connID)
		g.log.WithField("room_id", roomID).Warn("whiteboard vanished during join")
		return
	}
	g.sessions[connID] = &session{roomID: roomID, userName: name}

	if state, ok := g.store.State(roomID); ok {
		g.out.SendToOne(connID, EventCanvasState, state)
	}
	g.out.SendToRoomExcept(roomID, connID, EventUserJoined, UserPresenceRes{
		UserID:   connID,
		UserName: name,
		Users:    members,
	})
	g.out.SendToRoom(roomID, EventUsersUpdate, UsersUpdateRes{Users: members})

	g.log.WithFields(logrus.Fields{
		"conn_id": connID,
		"room_id": roomID,
		"user":    name,
	}).Info("user joined whiteboard")
}

func (g *Gateway) Leave(connID, roomID string) {
	if roomID == "" {
		return
	}
	g.removeFromRoom(connID, roomID)

	if sess, ok := g.sessions[connID]; ok && sess.roomID == roomID {
		sess.roomID = ""
	}
}

func (g *Gateway) Disconnect(connID string) {
	if roomID, ok := g.CurrentRoom(connID); ok {
		g.removeFromRoom(connID, roomID)
	}
	delete(g.sessions, connID)
}

func (g *Gateway) removeFromRoom(connID, roomID string) {
	g.out.LeaveGroup(roomID, connID)

	name := g.displayName(connID, roomID)
	members, ok := g.store.RemoveMember(roomID, connID)
	if !ok {
		return
	}

	g.out.SendToRoom(roomID, EventUserLeft, UserPresenceRes{
		UserID:   connID,
		UserName: name,
		Users:    members,
	})
	g.out.SendToRoom(roomID, EventUsersUpdate, UsersUpdateRes{Users: members})

	g.log.WithFields(logrus.Fields{
		"conn_id": connID,
		"room_id": roomID,
	}).Info("user left whiteboard")
}

func (g *Gateway) displayName(connID, roomID string) string {
	if sess, ok := g.sessions[connID]; ok && sess.roomID == roomID && sess.userName != "" {
		return sess.userName
	}
	if m, ok := g.store.Member(roomID, connID); ok {
		return m.DisplayName
	}
	if sess, ok := g.sessions[connID]; ok && sess.userName != "" {
		return sess.userName
	}
	return model.FallbackDisplayName(connID)
}

func (g *Gateway) Draw(connID, roomID string, payload *model.DrawingPayload) {
	entry := g.log.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID})
	if roomID == "" || payload == nil {
		entry.Warn("draw without roomId or drawingData")
		return
	}

	ev, err := model.NewDrawingEvent(*payload, g.newEventID(), g.now())
	if err != nil {
		entry.WithError(err).Warn("rejecting drawing")
		return
	}

	if !g.store.AppendDrawing(roomID, ev) {
		entry.Warn("draw for unknown whiteboard")
		return
	}

	g.out.SendToRoom(roomID, EventDrawing, DrawingRes{DrawingObject: ev, UserID: connID})
	entry.WithField("kind", ev.Kind).Debug("drawing appended")
}

func (g *Gateway) ClearCanvas(connID, roomID string) {
	if roomID == "" {
		return
	}
	if !g.store.ClearHistory(roomID) {
		g.log.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID}).Warn("clear for unknown whiteboard")
		return
	}

	g.out.SendToRoom(roomID, EventCanvasCleared, CanvasClearedRes{
		UserID:   connID,
		UserName: g.displayName(connID, roomID),
	})
	g.log.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID}).Info("canvas cleared")
}

func (g *Gateway) GetCanvasState(connID, roomID string) {
	if roomID == "" {
		return
	}
	state, ok := g.store.State(roomID)
	if !ok {
		g.out.SendToOne(connID, EventCanvasState, ErrorRes{Error: ErrWhiteboardNotFound})
		return
	}
	g.out.SendToOne(connID, EventCanvasState, state)
}
