package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Broadcaster delivers frames to connections grouped by room.
type Broadcaster interface {
	SendToRoom(roomID, event string, payload any)
	SendToRoomExcept(roomID, excludedConnID, event string, payload any)
	SendToOne(connID, event string, payload any)
	JoinGroup(roomID, connID string)
	LeaveGroup(roomID, connID string)
}

// Dispatcher handles inbound frames. The hub calls it from a single goroutine.
type Dispatcher interface {
	Dispatch(connID string, env Envelope)
	Disconnect(connID string)
}

type Inbound struct {
	ConnID   string
	Envelope Envelope
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
	groups  map[string]map[string]struct{}

	Register   chan *WSClient
	Unregister chan *WSClient
	Inbound    chan Inbound

	publisher Publisher
	stopped   chan struct{}
	log       *logrus.Entry
}

type HubOption func(*Hub)

// WithPublisher mirrors room-wide frames through p.
func WithPublisher(p Publisher) HubOption {
	return func(h *Hub) {
		h.publisher = p
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]*WSClient),
		groups:     make(map[string]map[string]struct{}),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Inbound:    make(chan Inbound, 512),
		stopped:    make(chan struct{}),
		log:        logrus.WithField("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations and inbound frames one at a time until ctx is
// done, which gives every room a single total order of events.
func (h *Hub) Run(ctx context.Context, d Dispatcher) {
	h.log.Info("hub is running")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			if h.removeClient(client) {
				d.Disconnect(client.ID)
				h.dropFromGroups(client.ID)
				h.closeClient(client)
			}

		case in := <-h.Inbound:
			// select does not order Inbound against Unregister, so a frame can
			// still be queued after its connection was torn down
			if !h.connected(in.ConnID) {
				h.log.WithFields(logrus.Fields{
					"conn_id": in.ConnID,
					"event":   in.Envelope.Event,
				}).Debug("dropping frame from closed connection")
				continue
			}
			observeInbound(in.Envelope.Event)
			d.Dispatch(in.ConnID, in.Envelope)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.stopped)

	h.mu.Lock()
	clients := make([]*WSClient, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
	h.log.WithField("clients", len(clients)).Info("hub stopped")
}

// Stopped is closed once Run has returned.
func (h *Hub) Stopped() <-chan struct{} {
	return h.stopped
}

func (h *Hub) register(cl *WSClient) bool {
	select {
	case h.Register <- cl:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregister(cl *WSClient) {
	select {
	case h.Unregister <- cl:
	case <-h.stopped:
	}
}

func (h *Hub) dispatch(in Inbound) bool {
	select {
	case h.Inbound <- in:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) addClient(cl *WSClient) {
	if cl == nil {
		return
	}
	h.mu.Lock()
	h.clients[cl.ID] = cl
	h.mu.Unlock()

	incConnections()
	h.log.WithField("conn_id", cl.ID).Info("client connected")
}

func (h *Hub) connected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

func (h *Hub) removeClient(cl *WSClient) bool {
	if cl == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[cl.ID]; !ok || current != cl {
		return false
	}
	delete(h.clients, cl.ID)
	decConnections()
	h.log.WithField("conn_id", cl.ID).Info("client disconnected")
	return true
}

// closeClient closes the send channel under the write lock so no sender can
// race with it.
func (h *Hub) closeClient(cl *WSClient) {
	h.mu.Lock()
	close(cl.Message)
	h.mu.Unlock()
}

func (h *Hub) dropFromGroups(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
	setRooms(len(h.groups))
}

func (h *Hub) JoinGroup(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.groups[roomID] = members
	}
	members[connID] = struct{}{}
	setRooms(len(h.groups))
}

func (h *Hub) LeaveGroup(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, roomID)
	}
	setRooms(len(h.groups))
}

// GroupSize reports how many connections are grouped under roomID.
func (h *Hub) GroupSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomID])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SendToRoom(roomID, event string, payload any) {
	h.sendToGroup(roomID, "", event, payload)
}

func (h *Hub) SendToRoomExcept(roomID, excludedConnID, event string, payload any) {
	h.sendToGroup(roomID, excludedConnID, event, payload)
}

func (h *Hub) SendToOne(connID, event string, payload any) {
	frame, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	cl, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.enqueue(cl, frame) {
		addDelivered(1)
	}
}

func (h *Hub) sendToGroup(roomID, excludedConnID, event string, payload any) {
	frame, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	delivered := 0
	for connID := range h.groups[roomID] {
		if connID == excludedConnID {
			continue
		}
		cl, ok := h.clients[connID]
		if !ok {
			continue
		}
		if h.enqueue(cl, frame) {
			delivered++
		}
	}
	h.mu.RUnlock()

	if delivered > 0 {
		addDelivered(delivered)
	}
	if h.publisher != nil {
		h.publisher.Publish(roomID, frame)
	}

	h.log.WithFields(logrus.Fields{
		"room_id":    roomID,
		"event":      event,
		"recipients": delivered,
	}).Debug("broadcast")
}

// enqueue never blocks: a full send buffer drops the frame for that client.
// Callers hold at least the read lock.
func (h *Hub) enqueue(cl *WSClient, frame []byte) bool {
	select {
	case cl.Message <- frame:
		return true
	default:
		incDropped()
		h.log.WithField("conn_id", cl.ID).Warn("client send buffer full, dropping message")
		return false
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	frame, err := json.Marshal(outboundEnvelope{Event: event, Data: payload})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("failed to encode outbound frame")
		return nil, false
	}
	return frame, true
}
