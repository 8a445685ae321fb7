// Package server exposes the Planner and Executor calls over HTTP.
//
// Every request gets its own assistant.Assistant; nothing but the gateway and
// the interaction log is shared between requests. When the gateway cannot be
// built at startup the service still answers /health as "degraded" and
// retries construction on each request that needs the model.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/config"
)

//go:embed openapi.yaml
var openapiYAML []byte

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// GatewayFactory builds the Model Gateway. It is called again after a failure.
type GatewayFactory func() (assistant.Gateway, error)

// Server is the HTTP front end.
type Server struct {
	cfg        config.Config
	rec        assistant.Recorder
	newGateway GatewayFactory
	doc        *openapi3.T
	docJSON    []byte
	mux        *http.ServeMux

	mu         sync.Mutex
	gw         assistant.Gateway
	startupErr error
}

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// New builds a Server. A failing factory is not an error here; it is reported
// through /health and retried per request. rec may be nil.
//
// Expectations:
//   - Returns an error when the embedded OpenAPI document does not load or validate
//   - Returns an error when a registered route is missing from the document
//   - Tries the gateway factory once; a failure is kept as the startup error
func New(cfg config.Config, rec assistant.Recorder, factory GatewayFactory) (*Server, error) {
	doc, err := loadOpenAPI()
	if err != nil {
		return nil, err
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("server: encode openapi: %w", err)
	}
	s := &Server{
		cfg:        cfg,
		rec:        rec,
		newGateway: factory,
		doc:        doc,
		docJSON:    docJSON,
		mux:        http.NewServeMux(),
	}
	for _, r := range s.routes() {
		item := doc.Paths.Find(r.path)
		if item == nil || item.GetOperation(r.method) == nil {
			return nil, fmt.Errorf("server: route %s %s is not documented", r.method, r.path)
		}
		s.mux.HandleFunc(r.method+" "+r.path, r.handler)
	}
	if _, err := s.gateway(); err != nil {
		log.Printf("[SERVER] model gateway unavailable at startup: %v", err)
	}
	return s, nil
}

func loadOpenAPI() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("server: load openapi: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("server: invalid openapi: %w", err)
	}
	return doc, nil
}

func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/health", s.handleHealth},
		{http.MethodPost, "/planner", s.handlePlanner},
		{http.MethodPost, "/planner/repair", s.handleRepair},
		{http.MethodPost, "/executor", s.handleExecutor},
		{http.MethodGet, "/openapi.json", s.handleOpenAPI},
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler { return s.mux }

// gateway returns the cached gateway, building it if needed.
func (s *Server) gateway() (assistant.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gw != nil {
		return s.gw, nil
	}
	if s.newGateway == nil {
		s.startupErr = errors.New("server: no model gateway configured")
		return nil, s.startupErr
	}
	gw, err := s.newGateway()
	if err != nil {
		s.startupErr = err
		return nil, err
	}
	if s.startupErr != nil {
		log.Printf("[SERVER] model gateway recovered")
	}
	s.gw = gw
	s.startupErr = nil
	return gw, nil
}

func (s *Server) newAssistant(gw assistant.Gateway) *assistant.Assistant {
	return assistant.New(gw, s.rec, assistant.Options{
		Model:     s.cfg.LLM.Model,
		MaxTokens: s.cfg.MaxTokens,
		WorkDir:   s.cfg.WorkDir,
		DryRun:    !s.cfg.Server.WriteFiles,
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Printf("[SERVER] shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}
