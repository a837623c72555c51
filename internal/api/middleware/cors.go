package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"whiteboard-backend/utils"

	"github.com/sirupsen/logrus"
)

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS answers preflights itself and decorates allowed cross-origin requests.
// Requests without an Origin header are passed through untouched. A disallowed
// origin still reaches the handler without CORS headers, so the browser
// blocks the response; the websocket upgrader applies the same policy.
func CORS(config CORSConfig) Middleware {
	policy := utils.NewOriginPolicy(config.AllowedOrigins)
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	maxAge := ""
	if config.MaxAge > 0 {
		maxAge = strconv.Itoa(int(config.MaxAge / time.Second))
	}
	log := logrus.WithField("component", "cors")

	return func(f http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions

			if origin == "" {
				if preflight {
					w.Header().Set("Allow", methods)
					w.WriteHeader(http.StatusNoContent)
					return
				}
				f(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !policy.Allows(origin) {
				log.WithFields(logrus.Fields{"origin": origin, "uri": r.RequestURI}).Debug("origin not allowed")
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				f(w, r)
				return
			}

			if policy.AllowsAny() && !config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				f(w, r)
				return
			}

			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")
			w.Header().Set("Access-Control-Allow-Methods", methods)
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			} else if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			}
			if maxAge != "" {
				w.Header().Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
