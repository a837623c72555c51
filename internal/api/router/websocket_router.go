package router

import (
	"net/http"

	"whiteboard-backend/internal/api"
	"whiteboard-backend/internal/api/endpoints"
)

func WebsocketRoutes(path string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		wsEndpoints := endpoints.NewWebsocketEndpoints(s.Handler())
		mux.HandleFunc(path, s.MakeHTTPHandleFunc(wsEndpoints.Connect))
	}
}
