package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"whiteboard-backend/internal/api/middleware"
	"whiteboard-backend/internal/queue"

	"github.com/sirupsen/logrus"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

// panicError carries a recovered handler panic and the stack it happened on.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f as a job on the request queue and renders any
// returned error as a JSON ApiError.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, extra ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() (err error) {
				defer func() {
					if rec := recover(); rec != nil {
						err = &panicError{value: rec, stack: debug.Stack()}
					}
				}()
				return f(w, r)
			},
			Errc: errc,
		}

		s.requestQueueManager.EnqueueJob(job)

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	middlewares := []middleware.Middleware{
		middleware.CORS(s.cors),
		middleware.Logging(),
	}

	finalHandler := func(w http.ResponseWriter, r *http.Request) {
		if len(extra) > 0 {
			middleware.Chain(baseHandler, extra...)(w, r)
			return
		}
		baseHandler(w, r)
	}

	return middleware.Chain(finalHandler, middlewares...)
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	entry := s.log.WithFields(logrus.Fields{"method": r.Method, "uri": r.URL.RequestURI()})

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.ErrorLog != nil {
			entry = entry.WithError(httpErr.ErrorLog)
		}
		if httpErr.StatusCode >= http.StatusInternalServerError {
			entry.Error(httpErr.Message)
		} else {
			entry.Debug(httpErr.Message)
		}
		WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
		return
	}

	body := ApiError{Error: "Internal server error"}
	var pe *panicError
	if errors.As(err, &pe) {
		entry = entry.WithField("stack", string(pe.stack))
		if !s.production {
			body.Stack = pe.Error() + "\n" + string(pe.stack)
		}
	} else if !s.production {
		body.Stack = err.Error()
	}
	entry.WithError(err).Error("unhandled error")
	WriteJSON(w, http.StatusInternalServerError, body)
}
