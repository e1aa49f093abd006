package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/inject"
	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/pubsub"
	"github.com/ritzau/wfc/pkg/templates"
)

// maxBodySize limits request bodies; workflow documents are small.
const maxBodySize = 8 << 20

// Server exposes the compiler, the injector and the template store over
// HTTP.
type Server struct {
	router    *mux.Router
	opts      compiler.Options
	store     *templates.Store
	publisher pubsub.Publisher
}

// NewServer creates a server. store may be nil, in which case the template
// routes answer 404.
func NewServer(opts compiler.Options, store *templates.Store, publisher pubsub.Publisher) *Server {
	if publisher == nil {
		publisher = pubsub.NewSSEPublisher()
	}
	s := &Server{
		router:    mux.NewRouter(),
		opts:      opts,
		store:     store,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods(http.MethodGet)

	s.router.HandleFunc("/api/compile", s.handleCompile).Methods(http.MethodPost)
	s.router.HandleFunc("/api/validate", s.handleValidate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/inject", s.handleInject).Methods(http.MethodPost)

	s.router.HandleFunc("/api/templates", s.handleTemplates).Methods(http.MethodGet)
	s.router.HandleFunc("/api/templates/{name}", s.handleTemplate).Methods(http.MethodGet)
	s.router.HandleFunc("/api/templates/{name}/render", s.handleRender).Methods(http.MethodPost)
}

// ServeHTTP makes the server usable as a handler, mainly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Info("shutting down web server")
	// Event streams never finish on their own.
	s.publisher.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.store != nil {
		resp["templates"] = len(s.store.Names())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	switch topic {
	case pubsub.TopicTemplates, pubsub.TopicCompile:
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown topic %q", topic))
		return
	}
	pubsub.Stream(w, r, s.publisher, topic)
}

type compileResponse struct {
	Graph    model.ExecutionGraph `json:"graph"`
	Warnings []model.Warning      `json:"warnings"`
	Order    []string             `json:"order,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.compile(data)
	if err != nil {
		s.publishCompile(r, pubsub.CompileStatus{Operation: "compile", Error: err.Error()})
		writeError(w, statusFor(err), err)
		return
	}

	resp := compileResponse{Graph: res.Graph, Warnings: res.Warnings}
	if r.URL.Query().Get("order") == "true" {
		if resp.Order, err = compiler.Order(res.Graph); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}

	s.publishCompile(r, pubsub.CompileStatus{Operation: "compile", Nodes: len(res.Graph), Warnings: len(res.Warnings)})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := compiler.ValidateJSON(data)
	status := pubsub.CompileStatus{Operation: "validate", Warnings: len(res.Errors)}
	if !res.Valid {
		status.Error = fmt.Sprintf("%d validation error(s)", len(res.Errors))
	}
	s.publishCompile(r, status)
	writeJSON(w, http.StatusOK, res)
}

type injectRequest struct {
	Graph    json.RawMessage `json:"graph"`
	Values   map[string]any  `json:"values"`
	Registry inject.Registry `json:"registry"`
	ClientID string          `json:"client_id"`
}

type injectResponse struct {
	Graph    model.ExecutionGraph `json:"graph"`
	Payload  map[string]any       `json:"payload"`
	Warnings []model.Warning      `json:"warnings"`
	Report   inject.Report        `json:"injection"`
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Graph) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("graph is required"))
		return
	}
	if err := req.Registry.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.compile(req.Graph)
	if err != nil {
		s.publishCompile(r, pubsub.CompileStatus{Operation: "inject", Error: err.Error()})
		writeError(w, statusFor(err), err)
		return
	}

	// The compiled graph is private to this request.
	report := inject.Inject(res.Graph, req.Values, req.Registry)
	warnings := append(res.Warnings, report.Warnings...)

	s.publishCompile(r, pubsub.CompileStatus{Operation: "inject", Nodes: len(res.Graph), Warnings: len(warnings)})
	writeJSON(w, http.StatusOK, injectResponse{
		Graph:    res.Graph,
		Payload:  res.Graph.Payload(req.ClientID),
		Warnings: warnings,
		Report:   report,
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []templates.Info{})
		return
	}
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", templates.ErrNotFound, name))
		return
	}
	t, ok := s.store.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", templates.ErrNotFound, name))
		return
	}
	res, err := s.store.Compile(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		templates.Info
		Graph    model.ExecutionGraph `json:"graph"`
		Warnings []model.Warning      `json:"warnings"`
	}{t.Info(), res.Graph, res.Warnings})
}

type renderRequest struct {
	Values   map[string]any `json:"values"`
	ClientID string         `json:"client_id"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", templates.ErrNotFound, name))
		return
	}

	var req renderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rendered, err := s.store.Render(name, req.Values, req.ClientID)
	if err != nil {
		s.publishCompile(r, pubsub.CompileStatus{Operation: "render", Template: name, Error: err.Error()})
		writeError(w, statusFor(err), err)
		return
	}

	s.publishCompile(r, pubsub.CompileStatus{
		Operation: "render",
		Template:  name,
		Nodes:     len(rendered.Graph),
		Warnings:  len(rendered.Warnings),
	})
	writeJSON(w, http.StatusOK, rendered)
}

func (s *Server) compile(data []byte) (*compiler.Result, error) {
	src, err := model.ParseSource(data)
	if err != nil {
		return nil, err
	}
	return compiler.CompileSource(src, s.opts)
}

func (s *Server) publishCompile(r *http.Request, status pubsub.CompileStatus) {
	status.RequestID = logging.GetRequestID(r.Context())
	eventType := "succeeded"
	if status.Error != "" {
		eventType = "failed"
	}
	if err := s.publisher.Publish(pubsub.TopicCompile, eventType, status); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		logging.WarnContext(r.Context(), "failed to publish compile event", "error", err)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBodySize {
		return nil, errors.New("request body too large")
	}
	return data, nil
}

// decodeBody keeps numbers as json.Number so that large seeds are not
// rounded through float64.
func decodeBody(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	NodeID string `json:"nodeId,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrStructural):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}

	var structural *model.StructuralError
	var missing *model.MissingClassTypeError
	switch {
	case errors.As(err, &missing):
		resp.Kind = model.KindMissingClassType
		resp.NodeID = missing.NodeID
	case errors.As(err, &structural):
		resp.Kind = structural.Kind
		resp.NodeID = structural.NodeID
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}
