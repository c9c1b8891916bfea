// Package api exposes the case engine over HTTP: starting audits, reading
// case state through workflow queries, and delivering external events
// (replies, approval decisions, operator actions) as workflow signals. The
// API holds no state of its own; the workflow is the source of truth.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/workflow"
)

// Server handles HTTP traffic for the case engine.
type Server struct {
	tc     client.Client
	cfg    *config.Config
	logger *zap.Logger
}

// NewServer creates an API server over a Temporal client.
func NewServer(tc client.Client, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{tc: tc, cfg: cfg, logger: logger}
}

// Router builds the chi router with all case endpoints mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/cases", s.handleStartCase)
	r.Route("/cases/{caseID}", func(r chi.Router) {
		r.Get("/", s.handleGetCase)
		r.Get("/evidence", s.handleGetEvidence)
		r.Get("/approval", s.handleGetPendingApproval)
		r.Get("/audit", s.handleGetAuditLog)

		r.Post("/reply", s.handleReply)
		r.Post("/approval", s.handleApprovalDecision)
		r.Post("/operator", s.handleOperatorAction)
		r.Post("/override", s.handleOverride)
	})
	return r
}

// WorkflowID derives the workflow id for a case.
func WorkflowID(caseID string) string { return "case-" + caseID }

type startCaseRequest struct {
	CaseID    string   `json:"case_id,omitempty"`
	PoolID    string   `json:"pool_id"`
	MemberIDs []string `json:"member_ids"`
}

type startCaseResponse struct {
	CaseID     string `json:"case_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func (s *Server) handleStartCase(w http.ResponseWriter, r *http.Request) {
	var req startCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PoolID == "" || len(req.MemberIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "pool_id and member_ids are required")
		return
	}
	caseID := req.CaseID
	if caseID == "" {
		caseID = fmt.Sprintf("CASE-%s", uuid.New().String()[:8])
	}

	input := workflow.CaseInput{
		CaseID:              caseID,
		PoolID:              req.PoolID,
		MemberIDs:           req.MemberIDs,
		Policy:              s.cfg.Policy(),
		ConfidenceThreshold: s.cfg.Audit.ConfidenceThreshold,
		SelectiveReAudit:    s.cfg.Audit.SelectiveReAudit,
		Routing:             s.cfg.Routing,
		VerificationTimeout: s.cfg.Verification.AggregateTimeout,
	}
	opts := client.StartWorkflowOptions{
		ID:                                       WorkflowID(caseID),
		TaskQueue:                                s.cfg.Temporal.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	we, err := s.tc.ExecuteWorkflow(ctx, opts, workflow.CaseWorkflow, input)
	if err != nil {
		s.logger.Error("start case failed", zap.String("case_id", caseID), zap.Error(err))
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.logger.Info("case started",
		zap.String("case_id", caseID),
		zap.String("pool_id", req.PoolID),
		zap.String("workflow_id", we.GetID()))
	s.writeJSON(w, http.StatusCreated, startCaseResponse{
		CaseID:     caseID,
		WorkflowID: we.GetID(),
		RunID:      we.GetRunID(),
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	var c domain.Case
	if !s.query(w, r, workflow.QueryCase, &c) {
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	var evidence []domain.VerificationResult
	if !s.query(w, r, workflow.QueryEvidence, &evidence) {
		return
	}
	s.writeJSON(w, http.StatusOK, evidence)
}

func (s *Server) handleGetPendingApproval(w http.ResponseWriter, r *http.Request) {
	var req domain.ApprovalRequest
	if !s.query(w, r, workflow.QueryPendingApproval, &req) {
		return
	}
	if req.ID == "" {
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	var audit []workflow.AuditEvent
	if !s.query(w, r, workflow.QueryAuditLog, &audit) {
		return
	}
	s.writeJSON(w, http.StatusOK, audit)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var reply domain.InboundReply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if reply.ReceivedAt.IsZero() {
		reply.ReceivedAt = time.Now().UTC()
	}
	if err := reply.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.signal(w, r, workflow.SignalReply, reply)
}

func (s *Server) handleApprovalDecision(w http.ResponseWriter, r *http.Request) {
	var decision domain.ApprovalDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}
	if err := decision.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.signal(w, r, workflow.SignalApprovalDecision, decision)
}

func (s *Server) handleOperatorAction(w http.ResponseWriter, r *http.Request) {
	var action domain.OperatorAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if action.IssuedAt.IsZero() {
		action.IssuedAt = time.Now().UTC()
	}
	if err := action.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.signal(w, r, workflow.SignalOperator, action)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var override domain.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := override.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.signal(w, r, workflow.SignalOverride, override)
}

// query runs a workflow query for the case in the URL and decodes the
// result, writing an error response on failure.
func (s *Server) query(w http.ResponseWriter, r *http.Request, queryType string, out any) bool {
	caseID := chi.URLParam(r, "caseID")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qr, err := s.tc.QueryWorkflow(ctx, WorkflowID(caseID), "", queryType)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return false
	}
	if err := qr.Get(out); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	return true
}

// signal delivers a signal to the case's workflow.
func (s *Server) signal(w http.ResponseWriter, r *http.Request, signalName string, payload any) {
	caseID := chi.URLParam(r, "caseID")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.tc.SignalWorkflow(ctx, WorkflowID(caseID), "", signalName, payload); err != nil {
		s.logger.Error("signal delivery failed",
			zap.String("case_id", caseID),
			zap.String("signal", signalName),
			zap.Error(err))
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "delivered"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
