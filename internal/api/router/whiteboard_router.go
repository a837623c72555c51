package router

import (
	"net/http"
	"strings"

	"whiteboard-backend/internal/api"
	"whiteboard-backend/internal/api/endpoints"
	whiteboardservice "whiteboard-backend/internal/service/whiteboard"
)

func WhiteboardRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/") + "/whiteboards"
		service := whiteboardservice.New(s.Store())
		boardEndpoints := endpoints.NewWhiteboardEndpoints(service, base)

		mux.HandleFunc(base, s.MakeHTTPHandleFunc(boardEndpoints.Whiteboards))
		mux.HandleFunc(base+"/", s.MakeHTTPHandleFunc(boardEndpoints.Whiteboard))
	}
}
