package whiteboard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"

	"github.com/sirupsen/logrus"
)

const MaxNameLength = 100

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

const (
	MessageInvalidName = "Invalid room name"
	MessageNameTooLong = "Whiteboard name must be less than 100 characters"
	MessageNotFound    = "Whiteboard not found"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func notFound(id string) *Error {
	return newError(ErrorCodeNotFound, MessageNotFound, fmt.Errorf("whiteboard %q does not exist", id))
}

// Service is the administrative view over the room store.
type Service struct {
	store *store.Store
	log   *logrus.Entry
}

func New(s *store.Store) *Service {
	return &Service{
		store: s,
		log:   logrus.WithField("component", "whiteboard_service"),
	}
}

func (s *Service) List() []model.RoomSummary {
	rooms := s.store.List()
	out := make([]model.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

func (s *Service) Create(name string) (model.RoomSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.RoomSummary{}, newError(ErrorCodeValidation, MessageInvalidName, nil)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return model.RoomSummary{}, newError(ErrorCodeValidation, MessageNameTooLong, nil)
	}

	room := s.store.Create(name)
	s.log.WithFields(logrus.Fields{"room_id": room.ID, "name": room.Name}).Info("whiteboard created")
	return room.Summary(), nil
}

func (s *Service) Get(id string) (model.RoomSummary, error) {
	room, ok := s.store.Get(id)
	if !ok {
		return model.RoomSummary{}, notFound(id)
	}
	return room.Summary(), nil
}

func (s *Service) Delete(id string) error {
	if !s.store.Delete(id) {
		return notFound(id)
	}
	s.log.WithField("room_id", id).Info("whiteboard deleted")
	return nil
}

func (s *Service) State(id string) (model.RoomState, error) {
	state, ok := s.store.State(id)
	if !ok {
		return model.RoomState{}, notFound(id)
	}
	return state, nil
}

func (s *Service) Stats() store.Stats {
	return s.store.Stats()
}
