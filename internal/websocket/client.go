package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pingPeriod   = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 512 * 1024
)

type WSClient struct {
	Conn     *websocket.Conn
	Message  chan []byte
	ID       string
	done     chan struct{} // closed when the read loop exits
	mu       sync.Mutex    // guards writes on Conn
	isClosed bool
	log      *logrus.Entry
}

func NewWSClient(conn *websocket.Conn, sendBuffer int) *WSClient {
	id := uuid.NewString()
	return &WSClient{
		Conn:    conn,
		Message: make(chan []byte, sendBuffer),
		ID:      id,
		done:    make(chan struct{}),
		log:     logrus.WithField("conn_id", id),
	}
}

func (cl *WSClient) close() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.isClosed {
		return
	}
	cl.isClosed = true
	if cl.Conn != nil {
		cl.Conn.Close()
	}
}

func (cl *WSClient) write(messageType int, data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.isClosed {
		return websocket.ErrCloseSent
	}
	cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.Conn.WriteMessage(messageType, data)
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			if err := cl.write(websocket.PingMessage, nil); err != nil {
				cl.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer cl.close()

	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-cl.Message:
			if !ok {
				cl.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.write(websocket.TextMessage, msg); err != nil {
				cl.log.WithError(err).Warn("error sending message")
				return
			}
		}
	}
}

func (cl *WSClient) readMessage(hub *Hub) {
	defer func() {
		if r := recover(); r != nil {
			cl.log.WithField("panic", r).Error("recovered from panic in read loop")
		}
		close(cl.done)
		hub.unregister(cl)
		cl.close()
	}()

	cl.Conn.SetReadLimit(maxFrameSize)
	cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.Conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure ||
				closeErr.Code == websocket.CloseGoingAway ||
				closeErr.Code == websocket.CloseNoStatusReceived) {
				return
			}
			cl.log.WithError(err).Debug("read loop ended")
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			cl.log.Warn("discarding malformed frame")
			continue
		}

		if !hub.dispatch(Inbound{ConnID: cl.ID, Envelope: env}) {
			return
		}
	}
}
