// Package server implements the taskgraph HTTP API over a task engine.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"taskgraph/internal/kvstorage"
	"taskgraph/internal/taskservice"
)

// Server is the taskgraph HTTP server.
type Server struct {
	engine   *taskservice.Engine
	persist  kvstorage.KVStore
	logger   *slog.Logger
	mux      *http.ServeMux
	httpSrv  *http.Server
	settings sync.Mutex // serializes settings read-modify-write
}

// New creates a server for engine. persist holds the settings document.
func New(engine *taskservice.Engine, persist kvstorage.KVStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:  engine,
		persist: persist,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the API with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

// ListenAndServe listens on addr and serves until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	return s.httpSrv.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Follow reloads the engine each time changes fires, until ctx is done or
// changes is closed. It lets the server pick up writes made by other
// processes, such as the CLI, to the same snapshot.
func (s *Server) Follow(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.engine.Reload(ctx); err != nil {
				s.logger.Warn("reloading tasks after external change", "error", err)
				continue
			}
			s.logger.Info("reloaded tasks after external change", "count", s.engine.Len())
		}
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/add", s.addTask)
	s.mux.HandleFunc("POST /v1/finish", s.finishTask)

	s.mux.HandleFunc("GET /v1/tasks", s.listTasks)
	s.mux.HandleFunc("GET /v1/tasks/{id}", s.getTask)
	s.mux.HandleFunc("PATCH /v1/tasks/{id}", s.updateTask)
	s.mux.HandleFunc("DELETE /v1/tasks/{id}", s.deleteTask)
	s.mux.HandleFunc("POST /v1/tasks/{id}/pin", s.pinTask)
	s.mux.HandleFunc("DELETE /v1/tasks/{id}/pin", s.unpinTask)
	s.mux.HandleFunc("POST /v1/tasks/{id}/tags", s.addTag)
	s.mux.HandleFunc("DELETE /v1/tasks/{id}/tags/{tag}", s.removeTag)

	s.mux.HandleFunc("POST /v1/dependencies/{requirement}/{dependent}", s.addDependency)
	s.mux.HandleFunc("DELETE /v1/dependencies/{requirement}/{dependent}", s.removeDependency)
	s.mux.HandleFunc("POST /v1/subtasks/{parent}/{child}", s.addSubtask)
	s.mux.HandleFunc("DELETE /v1/subtasks/{parent}/{child}", s.removeSubtask)

	s.mux.HandleFunc("GET /v1/ready", s.readyTasks)
	s.mux.HandleFunc("GET /v1/blocked", s.blockedTasks)

	s.mux.HandleFunc("GET /v1/settings", s.getSettings)
	s.mux.HandleFunc("PATCH /v1/settings", s.patchSettings)
}
