package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/containerd/errdefs"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/viant/fluxgrid"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/recovery"
	"github.com/viant/fluxgrid/tracing"
)

// Scheduler is the part of fluxgrid.Service the binding needs.
type Scheduler interface {
	Register(ctx context.Context, workerID string, cores int) (string, error)
	Heartbeat(ctx context.Context, workerID string, activeIDs []string) ([]*task.Task, error)
	Allocate(ctx context.Context, clientID string, vertices []task.Vertex) ([]string, error)
	Allocation(ctx context.Context, clientID string) ([]string, error)
	Pointers(ctx context.Context, clientID string) ([]task.Pointer, error)
	Program(ctx context.Context, taskID string) (string, error)
	Deregister(ctx context.Context, workerID string) (*recovery.Report, error)
	State(ctx context.Context) *fluxgrid.State
}

var _ Scheduler = (*fluxgrid.Service)(nil)

// Server routes HTTP requests to the scheduler.
type Server struct {
	scheduler Scheduler
	metrics   http.Handler
	logger    logrus.FieldLogger
	router    *mux.Router
}

type Option func(s *Server)

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates the router.
func New(scheduler Scheduler, opts ...Option) *Server {
	s := &Server{scheduler: scheduler, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	r := mux.NewRouter()
	r.Use(s.trace)
	r.HandleFunc("/", s.state).Methods(http.MethodGet)
	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/heartbeat", s.heartbeat).Methods(http.MethodPost)
	r.HandleFunc("/allocate", s.allocate).Methods(http.MethodPost)
	r.HandleFunc("/allocation", s.allocation).Methods(http.MethodGet).Queries("client_id", "{client_id}")
	r.HandleFunc("/pointers", s.pointers).Methods(http.MethodGet).Queries("client_id", "{client_id}")
	r.HandleFunc("/program", s.program).Methods(http.MethodGet).Queries("task_id", "{task_id}")
	r.HandleFunc("/workers/{id}", s.deregister).Methods(http.MethodDelete)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns a server for addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.scheduler.State(r.Context()))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	req := &RegisterRequest{}
	if !s.decode(w, r, req) {
		return
	}
	id, err := s.scheduler.Register(r.Context(), req.WorkerID, req.Cores)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &RegisterResponse{Success: true, WorkerID: id})
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	req := &HeartbeatRequest{}
	if !s.decode(w, r, req) {
		return
	}
	sent, err := s.scheduler.Heartbeat(r.Context(), req.WorkerID, req.ActiveTasks)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := &HeartbeatResponse{NewTasks: make([]*Task, len(sent))}
	for i, t := range sent {
		resp.NewTasks[i] = newTask(t)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) allocate(w http.ResponseWriter, r *http.Request) {
	req := &AllocateRequest{}
	if !s.decode(w, r, req) {
		return
	}
	ids, err := s.scheduler.Allocate(r.Context(), req.ClientID, req.NewTasks)
	if errdefs.IsResourceExhausted(err) {
		// an empty list tells the client to retry later
		ids, err = []string{}, nil
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &AllocationResponse{TaskIDs: ids})
}

func (s *Server) allocation(w http.ResponseWriter, r *http.Request) {
	ids, err := s.scheduler.Allocation(r.Context(), mux.Vars(r)["client_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &AllocationResponse{TaskIDs: ids})
}

func (s *Server) pointers(w http.ResponseWriter, r *http.Request) {
	pointers, err := s.scheduler.Pointers(r.Context(), mux.Vars(r)["client_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &PointersResponse{TaskPointers: pointers})
}

func (s *Server) program(w http.ResponseWriter, r *http.Request) {
	program, err := s.scheduler.Program(r.Context(), mux.Vars(r)["task_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/javascript")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(program))
}

func (s *Server) deregister(w http.ResponseWriter, r *http.Request) {
	report, err := s.scheduler.Deregister(r.Context(), mux.Vars(r)["id"])
	if err != nil && report == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		// the worker is gone; only the registry mirror lags
		s.logger.WithError(err).Warn("deregistration completed with registry error")
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, tracing.KindServer)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetStatusFromHTTPCode(rec.status)
		tracing.EndSpan(span, nil)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	s.writeJSON(w, status, &ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("failed to write response")
	}
}

func statusOf(err error) int {
	switch {
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsAlreadyExists(err):
		return http.StatusConflict
	case errdefs.IsResourceExhausted(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
