package websocket

import (
	"encoding/json"

	"whiteboard-backend/internal/model"
)

// Client-originated events.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventDraw           = "draw"
	EventClearCanvas    = "clear_canvas"
	EventGetCanvasState = "get_canvas_state"
	EventUndo           = "undo"
	EventRedo           = "redo"
)

// Server-originated events.
const (
	EventCanvasState   = "canvas_state"
	EventDrawing       = "drawing"
	EventCanvasCleared = "canvas_cleared"
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventUsersUpdate   = "users_update"
)

const ErrWhiteboardNotFound = "Whiteboard not found"

// Envelope is the frame exchanged in both directions: an event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinRoomReq struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type RoomReq struct {
	RoomID string `json:"roomId"`
}

type DrawReq struct {
	RoomID      string                `json:"roomId"`
	DrawingData *model.DrawingPayload `json:"drawingData"`
}

type UserPresenceRes struct {
	UserID   string         `json:"userId"`
	UserName string         `json:"userName"`
	Users    []model.Member `json:"users"`
}

type UsersUpdateRes struct {
	Users []model.Member `json:"users"`
}

type DrawingRes struct {
	DrawingObject model.DrawingEvent `json:"drawingObject"`
	UserID        string             `json:"userId"`
}

type CanvasClearedRes struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type ErrorRes struct {
	Error string `json:"error"`
}
