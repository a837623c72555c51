package websocket

import (
	"fmt"
	"net/http"

	"whiteboard-backend/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const DefaultSendBuffer = 64

type Handler struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *logrus.Entry
}

// NewHandler accepts upgrades from the listed origins; "*" or an empty list
// allows every origin.
func NewHandler(h *Hub, allowedOrigins []string, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		log:        logrus.WithField("component", "ws_handler"),
	}
}

// originChecker applies the CORS origin policy to upgrades. Clients that send
// no Origin header are not browsers and are let through.
func originChecker(allowed []string) func(r *http.Request) bool {
	policy := utils.NewOriginPolicy(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || policy.Allows(origin)
	}
}

// ServeWS upgrades the request and hands the connection to the hub. The
// upgrader has already written an HTTP error when Upgrade fails.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	cl := NewWSClient(conn, h.sendBuffer)
	if !h.hub.register(cl) {
		h.log.Warn("hub stopped, refusing connection")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return nil
	}

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
	return nil
}
