// Package store keeps every whiteboard room in memory for the lifetime of the
// process. All access goes through Store, which serialises mutations so the
// websocket hub and the admin HTTP workers can share it.
package store

import (
	"errors"
	"sync"
	"time"

	"whiteboard-backend/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrRoomExists = errors.New("store: room already exists")

type Store struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
	order []string

	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

type RoomStats struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Users   int    `json:"users"`
	Objects int    `json:"objects"`
}

type Stats struct {
	TotalWhiteboards int         `json:"totalWhiteboards"`
	Whiteboards      []RoomStats `json:"whiteboards"`
}

func New(opts ...Option) *Store {
	s := &Store{
		rooms: make(map[string]*model.Room),
		now:   time.Now,
		newID: uuid.NewString,
		log:   logrus.WithField("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Info("room store initialised with in-memory storage")
	return s
}

// Create stores an empty room under a freshly generated id.
func (s *Store) Create(name string) *model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.rooms[id]; !taken {
			break
		}
		id = s.newID()
	}

	room := s.insert(id, name)
	s.log.WithFields(logrus.Fields{"room_id": id, "name": room.Name}).Info("room created")
	return room.Clone()
}

// CreateWithID stores a room under a caller-chosen id. It refuses to replace
// an existing room; use Replace for that.
func (s *Store) CreateWithID(id, name string) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; exists {
		return nil, ErrRoomExists
	}
	room := s.insert(id, name)
	s.log.WithFields(logrus.Fields{"room_id": id, "name": room.Name}).Info("room created with custom id")
	return room.Clone(), nil
}

// Replace stores a new empty room under id, discarding any room already there.
func (s *Store) Replace(id, name string) *model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; exists {
		s.removeLocked(id)
		s.log.WithField("room_id", id).Warn("replacing existing room")
	}
	return s.insert(id, name).Clone()
}

// GetOrCreate returns the room under id, creating it with name when absent.
// The boolean reports whether a room was created.
func (s *Store) GetOrCreate(id, name string) (*model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[id]; ok {
		return room.Clone(), false
	}
	room := s.insert(id, name)
	s.log.WithFields(logrus.Fields{"room_id": id, "name": room.Name}).Info("room created on join")
	return room.Clone(), true
}

// Get returns a snapshot of the room; changes to it are not stored.
func (s *Store) Get(id string) (*model.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return room.Clone(), true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return false
	}
	s.removeLocked(id)
	s.log.WithField("room_id", id).Info("room deleted")
	return true
}

// List returns snapshots of every room in creation order.
func (s *Store) List() []*model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Room, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rooms[id].Clone())
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalWhiteboards: len(s.rooms),
		Whiteboards:      make([]RoomStats, 0, len(s.order)),
	}
	for _, id := range s.order {
		room := s.rooms[id]
		stats.Whiteboards = append(stats.Whiteboards, RoomStats{
			ID:      room.ID,
			Name:    room.Name,
			Users:   room.MemberCount(),
			Objects: room.EventCount(),
		})
	}
	return stats
}

// State returns the replayable canvas state of a room.
func (s *Store) State(id string) (model.RoomState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return model.RoomState{}, false
	}
	return room.State(), true
}

func (s *Store) AppendDrawing(id string, ev model.DrawingEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return false
	}
	room.AppendDrawing(ev, s.now())
	return true
}

func (s *Store) ClearHistory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return false
	}
	room.ClearHistory(s.now())
	s.log.WithField("room_id", id).Info("canvas cleared")
	return true
}

// AddMember records a member and returns the room's member list after the change.
func (s *Store) AddMember(id string, m model.Member) ([]model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now()
	}
	room.AddMember(m)
	s.log.WithFields(logrus.Fields{"room_id": id, "conn_id": m.ConnectionID}).Debug("member added")
	return room.Members(), true
}

// Member looks up one member without copying the room.
func (s *Store) Member(id, connectionID string) (model.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return model.Member{}, false
	}
	return room.Member(connectionID)
}

// RemoveMember drops a member and returns the remaining member list. The
// boolean is false only when the room does not exist.
func (s *Store) RemoveMember(id, connectionID string) ([]model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	if room.RemoveMember(connectionID) {
		s.log.WithFields(logrus.Fields{"room_id": id, "conn_id": connectionID}).Debug("member removed")
	}
	return room.Members(), true
}

// PruneIdle deletes rooms that have no members and have not changed for
// longer than maxIdle. It returns the ids it removed.
func (s *Store) PruneIdle(maxIdle time.Duration) []string {
	if maxIdle <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	var pruned []string
	for _, id := range append([]string(nil), s.order...) {
		room := s.rooms[id]
		if room.MemberCount() == 0 && room.UpdatedAt.Before(cutoff) {
			s.removeLocked(id)
			pruned = append(pruned, id)
		}
	}
	if len(pruned) > 0 {
		s.log.WithField("rooms", len(pruned)).Info("pruned idle rooms")
	}
	return pruned
}

func (s *Store) insert(id, name string) *model.Room {
	room := model.NewRoom(id, name, s.now())
	s.rooms[id] = room
	s.order = append(s.order, id)
	return room
}

func (s *Store) removeLocked(id string) {
	delete(s.rooms, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}
