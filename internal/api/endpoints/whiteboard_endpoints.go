package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"whiteboard-backend/internal/dto"
	whiteboardservice "whiteboard-backend/internal/service/whiteboard"
)

type WhiteboardEndpoints interface {
	Whiteboards(http.ResponseWriter, *http.Request) error
	Whiteboard(http.ResponseWriter, *http.Request) error
}

type whiteboardEndpoints struct {
	service *whiteboardservice.Service
	prefix  string
}

// NewWhiteboardEndpoints serves the collection at prefix and single boards
// below prefix + "/".
func NewWhiteboardEndpoints(service *whiteboardservice.Service, prefix string) WhiteboardEndpoints {
	return &whiteboardEndpoints{
		service: service,
		prefix:  strings.TrimRight(prefix, "/") + "/",
	}
}

func (h *whiteboardEndpoints) Whiteboards(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleList,
		http.MethodPost: h.handleCreate,
	})
}

func (h *whiteboardEndpoints) Whiteboard(w http.ResponseWriter, r *http.Request) error {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if rest == "" {
		return h.Whiteboards(w, r)
	}

	if rest == "stats/all" {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleStats,
		})
	}

	id, sub, _ := strings.Cut(rest, "/")
	switch sub {
	case "":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleGet(w, id)
			},
			http.MethodDelete: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleDelete(w, id)
			},
		})
	case "state":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleState(w, id)
			},
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("no whiteboard route for %s", r.URL.Path),
		}
	}
}

func (h *whiteboardEndpoints) handleList(w http.ResponseWriter, r *http.Request) error {
	boards := h.service.List()
	return WriteJSON(w, http.StatusOK, dto.WhiteboardListResponse{
		Success: true,
		Count:   len(boards),
		Data:    boards,
	})
}

func (h *whiteboardEndpoints) handleCreate(w http.ResponseWriter, r *http.Request) error {
	var req dto.CreateWhiteboardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	board, err := h.service.Create(req.Name)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, dto.WhiteboardResponse{Success: true, Data: board})
}

func (h *whiteboardEndpoints) handleGet(w http.ResponseWriter, id string) error {
	board, err := h.service.Get(id)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.WhiteboardResponse{Success: true, Data: board})
}

func (h *whiteboardEndpoints) handleDelete(w http.ResponseWriter, id string) error {
	if err := h.service.Delete(id); err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Whiteboard deleted successfully",
	})
}

func (h *whiteboardEndpoints) handleState(w http.ResponseWriter, id string) error {
	state, err := h.service.State(id)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.WhiteboardStateResponse{Success: true, Data: state})
}

func (h *whiteboardEndpoints) handleStats(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, dto.WhiteboardStatsResponse{Success: true, Data: h.service.Stats()})
}

func (h *whiteboardEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *whiteboardservice.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("whiteboard service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case whiteboardservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case whiteboardservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
