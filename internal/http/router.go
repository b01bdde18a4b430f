package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers and middleware into the mux. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Games       *GameHandler
	Preferences *PreferenceHandler
	Plans       *PlanHandler
	// Authenticate guards every route except registration and login.
	Authenticate func(http.Handler) http.Handler
	// PlanLimit guards plan generation and runs after Authenticate.
	PlanLimit  func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.Authenticate == nil {
			return h
		}
		return cfg.Authenticate(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.Handle("/sessions/current", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		}))
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Users.Register(w, r)
		})
		mux.Handle("/users/me", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Users.Me(w, r)
		}))
	}

	if cfg.Games != nil {
		mux.Handle("/games", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Games.List(w, r)
			case http.MethodPost:
				cfg.Games.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/games/", protect(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/games/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Games.Get(w, r)
			case http.MethodPut:
				cfg.Games.Update(w, r)
			case http.MethodDelete:
				cfg.Games.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
		mux.Handle("/backlog", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Games.Backlog(w, r)
		}))
		mux.Handle("/backlog/order", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Games.Reorder(w, r)
		}))
	}

	if cfg.Preferences != nil {
		mux.Handle("/preferences", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Preferences.Get(w, r)
			case http.MethodPut:
				cfg.Preferences.Update(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		}))
	}

	if cfg.Plans != nil {
		var generate http.Handler = http.HandlerFunc(cfg.Plans.Generate)
		if cfg.PlanLimit != nil {
			generate = cfg.PlanLimit(generate)
		}
		mux.Handle("/plans", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Plans.List(w, r)
			case http.MethodPost:
				generate.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/plans/", protect(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/plans/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Plans.Undo(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		}))
		mux.Handle("/play-sessions", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Plans.Sessions(w, r)
		}))
		mux.Handle("/projections", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Plans.Projections(w, r)
		}))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
