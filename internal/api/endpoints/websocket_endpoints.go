package endpoints

import (
	"fmt"
	"net/http"

	"whiteboard-backend/internal/websocket"

	"github.com/sirupsen/logrus"
)

type WebsocketEndpoints interface {
	Connect(http.ResponseWriter, *http.Request) error
}

type websocketEndpoints struct {
	handler *websocket.Handler
}

func NewWebsocketEndpoints(handler *websocket.Handler) WebsocketEndpoints {
	return &websocketEndpoints{handler: handler}
}

func (h *websocketEndpoints) Connect(w http.ResponseWriter, r *http.Request) error {
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("websocket handler not configured"),
		}
	}

	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			// the upgrader has already answered the client on failure
			if err := h.handler.ServeWS(w, r); err != nil {
				logrus.WithError(err).WithField("component", "ws_endpoint").Warn("websocket upgrade failed")
			}
			return nil
		},
	})
}
