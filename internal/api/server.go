package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"patentflow/internal/config"
	"patentflow/internal/ingest"
	"patentflow/internal/models"
	"patentflow/internal/providers"
	"patentflow/internal/storage"
	"patentflow/internal/util"
	"patentflow/internal/workflows"
)

// Temporal is the part of client.Client the server uses.
type Temporal interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// RunRegistry lists registered runs. Implemented by storage.RunRepo.
type RunRegistry interface {
	GetRun(ctx context.Context, runID string) (models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// BackendChecker reports whether a backend selector can be used.
type BackendChecker interface {
	Ready(backend string) error
}

type Server struct {
	cfg      config.Config
	temporal Temporal
	runs     RunRegistry
	backends BackendChecker
	logger   *zap.Logger
}

// NewServer builds the run-trigger API. runs may be nil when no database is
// configured.
func NewServer(cfg config.Config, temporal Temporal, runs RunRegistry, backends BackendChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backends == nil {
		backends = providers.NewManager(cfg)
	}
	return &Server{cfg: cfg, temporal: temporal, runs: runs, backends: backends, logger: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRunProgress)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type startRunRequest struct {
	RunID      string `json:"run_id"`
	InputPath  string `json:"input_path"`
	Backend    string `json:"backend"`
	TaskPrompt string `json:"task_prompt"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.InputPath = strings.TrimSpace(req.InputPath)
	if req.InputPath == "" {
		writeErr(w, http.StatusBadRequest, errors.New("input_path is required"))
		return
	}
	if info, err := os.Stat(req.InputPath); err != nil || info.IsDir() {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("input document not found: %s", req.InputPath))
		return
	}
	if !ingest.Supported(req.InputPath) {
		writeErr(w, http.StatusBadRequest, util.ErrUnsupportedInput)
		return
	}
	if strings.TrimSpace(req.RunID) == "" {
		req.RunID = uuid.NewString()
	}
	if err := util.ValidateRunID(req.RunID); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	backend := strings.ToLower(strings.TrimSpace(req.Backend))
	if backend == "" {
		backend = s.cfg.Backend
	}
	if err := s.backends.Ready(backend); err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(req.RunID),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}, workflows.PatentDraftWorkflow, workflows.PatentDraftInput{
		RunID:      req.RunID,
		InputPath:  req.InputPath,
		Backend:    backend,
		TaskPrompt: req.TaskPrompt,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	s.logger.Info("run submitted", zap.String("run_id", req.RunID), zap.String("workflow_id", we.GetID()), zap.String("backend", backend))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":          req.RunID,
		"workflow_id":     we.GetID(),
		"temporal_run_id": we.GetRunID(),
	})
}

func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	resp, err := s.temporal.QueryWorkflow(r.Context(), workflows.WorkflowID(runID), "", workflows.QueryGetProgress)
	if err == nil {
		var prog workflows.RunProgress
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}
	if s.runs == nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	run, regErr := s.runs.GetRun(r.Context(), runID)
	if regErr != nil {
		writeErr(w, http.StatusNotFound, regErr)
		return
	}
	writeJSON(w, http.StatusOK, workflows.RunProgress{
		RunID:       run.RunID,
		OutputDir:   run.OutputDir,
		Status:      string(run.Status),
		FailedStage: run.FailedStage,
		Error:       run.Error,
		Stages:      map[string]workflows.StageProgress{},
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("run registry disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		code = "PF-API-5020"
		msg = "Model backend is not configured. " + firstLine(err)
	case status == http.StatusServiceUnavailable:
		code = "PF-API-5030"
		msg = "Run registry is disabled. Configure PATENTFLOW_POSTGRES_URL to list runs."
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "PF-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "PF-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		default:
			return apiError{Code: "PF-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	case status == http.StatusBadRequest:
		code = "PF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PF-API-4004"
		msg = "Requested run was not found."
	case status == http.StatusConflict:
		code = "PF-API-4009"
		msg = "A run with this ID is already in progress."
	}

	if status == http.StatusBadRequest && err != nil {
		switch {
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "input_path is required"):
			msg = "input_path is required."
		case strings.Contains(raw, "input document not found"):
			msg = "Input document does not exist."
		case errors.Is(err, util.ErrUnsupportedInput):
			msg = "Unsupported input format. Use .docx, .pdf, .md or .txt."
		case errors.Is(err, util.ErrInvalidRunID):
			msg = "run_id may only contain letters, digits, '.', '_' and '-'."
		}
	}
	if status == http.StatusNotFound && errors.Is(err, storage.ErrRunNotFound) {
		msg = "No run with this ID is registered."
	}
	return apiError{Code: code, Message: msg}
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
