package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_ws_rooms",
			Help: "Current number of rooms with at least one grouped connection.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_ws_messages_delivered_total",
			Help: "Total websocket messages queued for delivery to clients.",
		},
	)
	wsMessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_ws_messages_dropped_total",
			Help: "Total websocket messages dropped because a client send buffer was full.",
		},
	)
	wsInboundEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_ws_inbound_events_total",
			Help: "Inbound websocket events by event name.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsMessagesDelivered, wsMessagesDropped, wsInboundEvents)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incDropped() {
	wsMessagesDropped.Inc()
}

func observeInbound(event string) {
	switch event {
	case EventJoinRoom, EventLeaveRoom, EventDraw, EventClearCanvas, EventGetCanvasState, EventUndo, EventRedo:
	default:
		event = "unknown"
	}
	wsInboundEvents.WithLabelValues(event).Inc()
}
