package sbtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/auth"
)

// Server exposes a Runtime over the management HTTP protocol.
type Server struct {
	*httptest.Server
	rt *Runtime

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	status  api.TaskStatus
	pending int
}

// NewServer starts a server guarded by Basic auth. Close it when done.
// Activation tasks report "running" once before their final status.
func NewServer(rt *Runtime, username, password string) *Server {
	s := &Server{rt: rt, tasks: map[string]*task{}}
	s.Server = httptest.NewServer(auth.Middleware(username, password, s.routes()))
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	const p = "/management"

	mux.HandleFunc("GET "+p+"/version", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, api.VersionInfo{Version: "12.2.1.4.0-sbtest"}, s.rt.Ping(r.Context()))
	})
	mux.HandleFunc("GET "+p+"/servicebus/projects", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ListProjects(r.Context())
		s.reply(w, v, err)
	})
	mux.HandleFunc("GET "+p+"/servicebus/services", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ListServices(r.Context(), api.ServiceKind(r.URL.Query().Get("kind")))
		s.reply(w, v, err)
	})
	mux.HandleFunc("GET "+p+"/servicebus/projects/{project}/services", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ProjectServices(r.Context(), r.PathValue("project"))
		s.reply(w, v, err)
	})
	mux.HandleFunc("GET "+p+"/servicebus/proxies", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ProxyService(r.Context(), r.URL.Query().Get("path"))
		s.reply(w, v, err)
	})
	mux.HandleFunc("GET "+p+"/servicebus/sessions", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ListChangeSessions(r.Context())
		s.reply(w, v, err)
	})
	mux.HandleFunc("POST "+p+"/servicebus/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req api.SessionRequest
		if !decode(w, r, &req) {
			return
		}
		s.reply(w, nil, s.rt.CreateChangeSession(r.Context(), req.Name))
	})
	mux.HandleFunc("POST "+p+"/servicebus/sessions/{s}/activate", func(w http.ResponseWriter, r *http.Request) {
		var req api.ActivateRequest
		if !decode(w, r, &req) {
			return
		}
		name := r.PathValue("s")
		s.startTask(r.Context(), w, func(ctx context.Context) error {
			return s.rt.ActivateChangeSession(ctx, name, req.Description)
		})
	})
	mux.HandleFunc("DELETE "+p+"/servicebus/sessions/{s}", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.DiscardChangeSession(r.Context(), r.PathValue("s")))
	})
	mux.HandleFunc("DELETE "+p+"/servicebus/sessions/{s}/projects/{project}", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.DeleteProject(r.Context(), r.PathValue("s"), r.PathValue("project")))
	})
	mux.HandleFunc("POST "+p+"/servicebus/sessions/{s}/proxies/state", func(w http.ResponseWriter, r *http.Request) {
		var req api.ToggleRequest
		if !decode(w, r, &req) {
			return
		}
		s.reply(w, nil, s.rt.SetProxyEnabled(r.Context(), r.PathValue("s"), req.Path, req.Enabled))
	})
	mux.HandleFunc("POST "+p+"/servicebus/sessions/{s}/proxies/monitoring", func(w http.ResponseWriter, r *http.Request) {
		var req api.ToggleRequest
		if !decode(w, r, &req) {
			return
		}
		s.reply(w, nil, s.rt.SetProxyMonitoring(r.Context(), r.PathValue("s"), req.Path, req.Enabled))
	})

	mux.HandleFunc("POST "+p+"/weblogic/edit/start", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.StartEdit(r.Context()))
	})
	mux.HandleFunc("POST "+p+"/weblogic/edit/activate", func(w http.ResponseWriter, r *http.Request) {
		s.startTask(r.Context(), w, s.rt.ActivateEdit)
	})
	mux.HandleFunc("POST "+p+"/weblogic/edit/cancel", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.CancelEdit(r.Context()))
	})
	mux.HandleFunc("GET "+p+"/weblogic/jms/destinations", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ListDestinations(r.Context())
		s.reply(w, v, err)
	})
	mux.HandleFunc("DELETE "+p+"/weblogic/edit/jms/{module}/{kind}/{name}", func(w http.ResponseWriter, r *http.Request) {
		d := api.JMSDestination{Module: r.PathValue("module"), Kind: r.PathValue("kind"), Name: r.PathValue("name")}
		// the wire path does not carry the error destination; look it up
		if dests, err := s.rt.ListDestinations(r.Context()); err == nil {
			for _, x := range dests {
				if x.Module == d.Module && x.Kind == d.Kind && x.Name == d.Name {
					d = x
				}
			}
		}
		s.reply(w, nil, s.rt.DeleteDestination(r.Context(), d))
	})
	mux.HandleFunc("GET "+p+"/weblogic/workmanagers", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.rt.ListWorkManagers(r.Context())
		s.reply(w, v, err)
	})
	mux.HandleFunc("DELETE "+p+"/weblogic/edit/workmanagers/{name}", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.DeleteWorkManager(r.Context(), r.PathValue("name")))
	})
	mux.HandleFunc("DELETE "+p+"/weblogic/edit/constraints/{kind}/{name}", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, nil, s.rt.DeleteConstraint(r.Context(), api.ConstraintKind(r.PathValue("kind")), r.PathValue("name")))
	})

	mux.HandleFunc("GET "+p+"/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		t, ok := s.tasks[r.PathValue("id")]
		var status api.TaskStatus
		if ok {
			status = t.status
			if t.pending > 0 {
				t.pending--
				status.Status = api.TaskRunning
			}
		}
		s.mu.Unlock()
		if !ok {
			s.reply(w, nil, api.ErrNotFound)
			return
		}
		s.reply(w, status, nil)
	})
	return mux
}

// startTask runs an activation and records its outcome as a task the client polls.
func (s *Server) startTask(ctx context.Context, w http.ResponseWriter, run func(context.Context) error) {
	id := uuid.NewString()
	t := &task{status: api.TaskStatus{ID: id, Status: api.TaskCompleted}, pending: 1}
	if err := run(ctx); err != nil {
		t.status.Status = api.TaskFailed
		t.status.Message = err.Error()
	}
	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()
	s.reply(w, api.TaskRef{Task: id}, nil)
}

func (s *Server) reply(w http.ResponseWriter, data any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, api.ErrNotFound) {
			code = http.StatusNotFound
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid body: " + err.Error()})
		return false
	}
	return true
}
