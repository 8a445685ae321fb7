package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/llm"
	"github.com/haricheung/assignment-helper/internal/roles/planner"
	"github.com/haricheung/assignment-helper/internal/types"
)

type healthResponse struct {
	Status       string  `json:"status"`
	Model        string  `json:"model"`
	StartupError *string `json:"startup_error"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Raw    string `json:"raw,omitempty"`
}

type plannerRequest struct {
	Assignment string `json:"assignment"`
}

type repairRequest struct {
	Raw string `json:"raw"`
}

type planResponse struct {
	Plan  types.Plan         `json:"plan"`
	Tasks []types.TaskRecord `json:"tasks"`
}

type executorRequest struct {
	Assignment string `json:"assignment"`
	TaskDesc   string `json:"task_desc"`
	Context    string `json:"context"`
}

type executorResult struct {
	Action   string  `json:"action"`
	Filename *string `json:"filename,omitempty"`
	Content  *string `json:"content,omitempty"`
}

type executorResponse struct {
	Result  executorResult `json:"result"`
	Written string         `json:"written,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] encode response: %v", err)
	}
}

// statusFor maps an error to its HTTP status.
//
// Expectations:
//   - *types.ParseFailure → 422
//   - *llm.UpstreamError → 502
//   - *llm.ConfigurationError → 503
//   - assistant.ErrEmptyBrief / assistant.ErrEmptyTask → 400
//   - anything else (including *executor.FileWriteError) → 500
func statusFor(err error) int {
	var pf *types.ParseFailure
	var upErr *llm.UpstreamError
	var cfgErr *llm.ConfigurationError
	switch {
	case errors.As(err, &pf):
		return http.StatusUnprocessableEntity
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, assistant.ErrEmptyBrief), errors.Is(err, assistant.ErrEmptyTask):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Detail: err.Error()}
	var pf *types.ParseFailure
	if errors.As(err, &pf) {
		body.Raw = pf.Raw
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[SERVER] %d: %v", status, err)
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Model: s.cfg.LLM.Model}
	if _, err := s.gateway(); err != nil {
		msg := err.Error()
		resp.Status = "degraded"
		resp.StartupError = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlanner(w http.ResponseWriter, r *http.Request) {
	var req plannerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Assignment) == "" {
		badRequest(w, "assignment is required")
		return
	}
	gw, err := s.gateway()
	if err != nil {
		writeError(w, err)
		return
	}
	a := s.newAssistant(gw)
	plan, err := a.Plan(r.Context(), req.Assignment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Tasks: a.Tasks()})
}

// handleRepair re-validates corrected planner output. It never calls the
// model, so it works while the gateway is unavailable.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Raw) == "" {
		badRequest(w, "raw is required")
		return
	}
	plan, err := planner.ParsePlan(req.Raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Tasks: planner.Flatten(plan)})
}

func (s *Server) handleExecutor(w http.ResponseWriter, r *http.Request) {
	var req executorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TaskDesc) == "" {
		badRequest(w, "task_desc is required")
		return
	}
	if strings.TrimSpace(req.Assignment) == "" {
		badRequest(w, "assignment is required")
		return
	}
	gw, err := s.gateway()
	if err != nil {
		writeError(w, err)
		return
	}
	a := s.newAssistant(gw)
	a.SetBrief(req.Assignment)
	out, err := a.Execute(r.Context(), req.TaskDesc, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := executorResponse{Result: resultBody(out.Action)}
	if out.Written() {
		resp.Written = out.Path
	}
	writeJSON(w, http.StatusOK, resp)
}

// resultBody echoes the parsed model result. The filename is the model's
// literal value; the sanitized path actually used is reported as "written".
func resultBody(action types.Action) executorResult {
	res := executorResult{Action: action.Name()}
	if a, ok := action.(types.GenerateFile); ok {
		res.Filename = &a.Filename
		res.Content = &a.Content
	}
	return res
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.docJSON)
}
