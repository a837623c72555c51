package model

import "time"

const DefaultRoomName = "Untitled Whiteboard"

type Member struct {
	ConnectionID string    `json:"id"`
	DisplayName  string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// FallbackDisplayName names members that joined without a userName.
func FallbackDisplayName(connectionID string) string {
	short := connectionID
	if len(short) > 6 {
		short = short[:6]
	}
	return "User " + short
}

// Room holds the membership and append-only drawing history of one whiteboard.
// It is not safe for concurrent use; the store serialises access.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	History   []DrawingEvent

	members     map[string]Member
	memberOrder []string
}

// RoomState is what a client needs to rebuild the canvas.
type RoomState struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	History []DrawingEvent `json:"drawingObjects"`
	Members []Member       `json:"users"`
}

type RoomSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	History     []DrawingEvent `json:"drawingObjects"`
	Members     []Member       `json:"users"`
	ObjectCount int            `json:"objectCount"`
	UserCount   int            `json:"userCount"`
}

func NewRoom(id, name string, now time.Time) *Room {
	if name == "" {
		name = DefaultRoomName
	}
	return &Room{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		History:   []DrawingEvent{},
		members:   make(map[string]Member),
	}
}

func (r *Room) AppendDrawing(ev DrawingEvent, now time.Time) {
	r.History = append(r.History, ev)
	r.UpdatedAt = now
}

func (r *Room) ClearHistory(now time.Time) {
	r.History = []DrawingEvent{}
	r.UpdatedAt = now
}

// AddMember records m. A connection that is already a member keeps its
// position in the join order and gets the new display name.
func (r *Room) AddMember(m Member) {
	if r.members == nil {
		r.members = make(map[string]Member)
	}
	if existing, ok := r.members[m.ConnectionID]; ok {
		existing.DisplayName = m.DisplayName
		r.members[m.ConnectionID] = existing
		return
	}
	r.members[m.ConnectionID] = m
	r.memberOrder = append(r.memberOrder, m.ConnectionID)
}

func (r *Room) RemoveMember(connectionID string) bool {
	if _, ok := r.members[connectionID]; !ok {
		return false
	}
	delete(r.members, connectionID)
	for i, id := range r.memberOrder {
		if id == connectionID {
			r.memberOrder = append(r.memberOrder[:i:i], r.memberOrder[i+1:]...)
			break
		}
	}
	return true
}

func (r *Room) Member(connectionID string) (Member, bool) {
	m, ok := r.members[connectionID]
	return m, ok
}

// Members lists current members in join order.
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.memberOrder))
	for _, id := range r.memberOrder {
		out = append(out, r.members[id])
	}
	return out
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

func (r *Room) EventCount() int {
	return len(r.History)
}

// Clone returns a copy that shares nothing mutable with r. Events are
// immutable so the history entries themselves are shared.
func (r *Room) Clone() *Room {
	c := &Room{
		ID:          r.ID,
		Name:        r.Name,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		History:     append([]DrawingEvent{}, r.History...),
		members:     make(map[string]Member, len(r.members)),
		memberOrder: append([]string(nil), r.memberOrder...),
	}
	for id, m := range r.members {
		c.members[id] = m
	}
	return c
}

func (r *Room) State() RoomState {
	return RoomState{
		ID:      r.ID,
		Name:    r.Name,
		History: append([]DrawingEvent{}, r.History...),
		Members: r.Members(),
	}
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		History:     append([]DrawingEvent{}, r.History...),
		Members:     r.Members(),
		ObjectCount: len(r.History),
		UserCount:   len(r.members),
	}
}
