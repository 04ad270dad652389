package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/ingest"
	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/pipeline"
	"github.com/policygate/policygate/internal/rules"
)

// --- Input/Output types ---

// IngestInput carries one extraction payload.
type IngestInput struct {
	PolicyID    string      `json:"policy_id" jsonschema:"policy identifier"`
	PolicyTitle string      `json:"policy_title,omitempty" jsonschema:"human-readable policy title"`
	Rules       []RuleInput `json:"rules" jsonschema:"extracted rules"`
}

// RuleInput is one extracted rule.
type RuleInput struct {
	RuleID          string   `json:"rule_id" jsonschema:"rule identifier, unique within the policy"`
	Action          string   `json:"action" jsonschema:"what must be done"`
	Conditions      []string `json:"conditions,omitempty" jsonschema:"conditions under which the action applies"`
	ResponsibleRole string   `json:"responsible_role,omitempty" jsonschema:"Clerk, Officer or Admin; may be empty when ambiguous"`
	Beneficiary     string   `json:"beneficiary,omitempty" jsonschema:"who the action is for"`
	Deadline        string   `json:"deadline,omitempty" jsonschema:"free-form deadline"`
	AmbiguityFlag   bool     `json:"ambiguity_flag" jsonschema:"true when the extractor could not resolve the rule"`
	AmbiguityReason string   `json:"ambiguity_reason,omitempty" jsonschema:"why the rule is ambiguous"`
}

// IngestOutput summarizes the accepted payload or names the failure.
type IngestOutput struct {
	Result    *pipeline.IngestResult `json:"result,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// PendingInput optionally narrows to one policy.
type PendingInput struct {
	PolicyID string `json:"policy_id,omitempty" jsonschema:"limit to one policy"`
}

// PendingOutput lists ambiguous rules.
type PendingOutput struct {
	Rules     []rules.PendingRule `json:"rules"`
	ErrorKind string              `json:"error_kind,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ClarifyInput is a clarification request.
type ClarifyInput struct {
	PolicyID        string   `json:"policy_id" jsonschema:"policy identifier"`
	RuleID          string   `json:"rule_id" jsonschema:"rule identifier"`
	ResponsibleRole string   `json:"responsible_role" jsonschema:"Clerk, Officer or Admin"`
	Deadline        string   `json:"deadline,omitempty" jsonschema:"free-form deadline"`
	Conditions      []string `json:"conditions,omitempty" jsonschema:"conditions to append"`
	Beneficiary     string   `json:"beneficiary,omitempty" jsonschema:"who the action is for"`
	Action          string   `json:"action,omitempty" jsonschema:"replacement action text"`
}

// ClarifyOutput returns the resolved rule.
type ClarifyOutput struct {
	Rule      *model.Rule `json:"rule,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// FinalizeInput names the policy to finalize.
type FinalizeInput struct {
	PolicyID string `json:"policy_id" jsonschema:"policy identifier"`
}

// FinalizeOutput lists the policy's tasks.
type FinalizeOutput struct {
	Tasks     []model.Task `json:"tasks,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// TasksInput optionally filters by role.
type TasksInput struct {
	Role string `json:"role,omitempty" jsonschema:"Clerk, Officer or Admin; Admin and empty see all tasks"`
}

// TasksOutput lists tasks.
type TasksOutput struct {
	Tasks     []model.Task `json:"tasks"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// AdvanceInput is a status transition request.
type AdvanceInput struct {
	TaskID string `json:"task_id" jsonschema:"task identifier"`
	Status string `json:"status" jsonschema:"target status: ASSIGNED, IN_PROGRESS, COMPLETED or ESCALATED"`
	Role   string `json:"role" jsonschema:"acting role, must hold the task"`
}

// EscalateInput is an escalation request.
type EscalateInput struct {
	TaskID string `json:"task_id" jsonschema:"task identifier"`
	Role   string `json:"role" jsonschema:"acting role, must hold the task"`
}

// TaskOutput returns one updated task.
type TaskOutput struct {
	Task      *model.Task `json:"task,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// AuditInput filters the audit trail.
type AuditInput struct {
	TaskID   string `json:"task_id,omitempty" jsonschema:"limit to one task"`
	PolicyID string `json:"policy_id,omitempty" jsonschema:"limit to one policy"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum entries, newest first"`
}

// AuditOutput lists audit entries newest first.
type AuditOutput struct {
	Entries []audit.Entry `json:"entries"`
}

// StatsInput is empty.
type StatsInput struct{}

// StatsOutput carries the dashboard counts.
type StatsOutput struct {
	Stats     *pipeline.Stats `json:"stats,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// failure marks the tool result as an error while keeping the kind and
// message in the typed output, where the caller can branch on them.
func failure(err error) (*mcpsdk.CallToolResult, string, string) {
	return &mcpsdk.CallToolResult{IsError: true}, pipeline.ErrKind(err), err.Error()
}

// --- Handlers ---

func (s *Server) handleIngest(ctx context.Context, req *mcpsdk.CallToolRequest, input IngestInput) (*mcpsdk.CallToolResult, IngestOutput, error) {
	payload := &ingest.Payload{
		PolicyID:    input.PolicyID,
		PolicyTitle: input.PolicyTitle,
		Rules:       make([]ingest.RulePayload, 0, len(input.Rules)),
	}
	for _, r := range input.Rules {
		payload.Rules = append(payload.Rules, ingest.RulePayload(r))
	}

	result, err := s.pipe.IngestPolicy(payload)
	if err != nil {
		res, kind, msg := failure(err)
		return res, IngestOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, IngestOutput{Result: &result}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	pending, err := s.pipe.PendingClarifications(input.PolicyID)
	if err != nil {
		res, kind, msg := failure(err)
		return res, PendingOutput{ErrorKind: kind, Error: msg}, nil
	}
	if pending == nil {
		pending = []rules.PendingRule{}
	}
	return nil, PendingOutput{Rules: pending}, nil
}

func (s *Server) handleClarify(ctx context.Context, req *mcpsdk.CallToolRequest, input ClarifyInput) (*mcpsdk.CallToolResult, ClarifyOutput, error) {
	rule, err := s.pipe.ApplyClarification(model.ClarificationRequest{
		PolicyID:        input.PolicyID,
		RuleID:          input.RuleID,
		ResponsibleRole: input.ResponsibleRole,
		Deadline:        input.Deadline,
		Conditions:      input.Conditions,
		Beneficiary:     input.Beneficiary,
		Action:          input.Action,
	})
	if err != nil {
		res, kind, msg := failure(err)
		return res, ClarifyOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, ClarifyOutput{Rule: &rule}, nil
}

func (s *Server) handleFinalize(ctx context.Context, req *mcpsdk.CallToolRequest, input FinalizeInput) (*mcpsdk.CallToolResult, FinalizeOutput, error) {
	generated, err := s.pipe.FinalizePolicy(input.PolicyID)
	if err != nil {
		res, kind, msg := failure(err)
		return res, FinalizeOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, FinalizeOutput{Tasks: generated}, nil
}

func (s *Server) handleTasks(ctx context.Context, req *mcpsdk.CallToolRequest, input TasksInput) (*mcpsdk.CallToolResult, TasksOutput, error) {
	list, err := s.pipe.ListTasks(input.Role)
	if err != nil {
		res, kind, msg := failure(err)
		return res, TasksOutput{ErrorKind: kind, Error: msg}, nil
	}
	if list == nil {
		list = []model.Task{}
	}
	return nil, TasksOutput{Tasks: list}, nil
}

func (s *Server) handleAdvance(ctx context.Context, req *mcpsdk.CallToolRequest, input AdvanceInput) (*mcpsdk.CallToolResult, TaskOutput, error) {
	task, err := s.pipe.AdvanceTask(input.TaskID, input.Status, input.Role)
	if err != nil {
		res, kind, msg := failure(err)
		return res, TaskOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, TaskOutput{Task: &task}, nil
}

func (s *Server) handleEscalate(ctx context.Context, req *mcpsdk.CallToolRequest, input EscalateInput) (*mcpsdk.CallToolResult, TaskOutput, error) {
	task, err := s.pipe.EscalateTask(input.TaskID, input.Role)
	if err != nil {
		res, kind, msg := failure(err)
		return res, TaskOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, TaskOutput{Task: &task}, nil
}

func (s *Server) handleAudit(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditInput) (*mcpsdk.CallToolResult, AuditOutput, error) {
	entries := s.pipe.AuditTrail(audit.Filter{
		TaskID:   input.TaskID,
		PolicyID: input.PolicyID,
		Limit:    input.Limit,
	})
	if entries == nil {
		entries = []audit.Entry{}
	}
	return nil, AuditOutput{Entries: entries}, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcpsdk.CallToolRequest, input StatsInput) (*mcpsdk.CallToolResult, StatsOutput, error) {
	stats, err := s.pipe.Stats()
	if err != nil {
		res, kind, msg := failure(err)
		return res, StatsOutput{ErrorKind: kind, Error: msg}, nil
	}
	return nil, StatsOutput{Stats: &stats}, nil
}
