package dto

import (
	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"
)

type CreateWhiteboardRequest struct {
	Name string `json:"name"`
}

type WhiteboardListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Data    []model.RoomSummary `json:"data"`
}

type WhiteboardResponse struct {
	Success bool              `json:"success"`
	Data    model.RoomSummary `json:"data"`
}

type WhiteboardStateResponse struct {
	Success bool            `json:"success"`
	Data    model.RoomState `json:"data"`
}

type WhiteboardStatsResponse struct {
	Success bool        `json:"success"`
	Data    store.Stats `json:"data"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
