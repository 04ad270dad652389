// Package mcp exposes the pipeline over the Model Context Protocol, so
// agent frontends can ingest policies, drive clarifications and manage
// tasks through typed tools.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policygate/policygate/internal/pipeline"
)

// Server wraps the MCP SDK server around one pipeline.
type Server struct {
	mcpServer *mcpsdk.Server
	pipe      *pipeline.Pipeline
}

// New creates an MCP server exposing the policygate tools.
func New(pipe *pipeline.Pipeline) *Server {
	s := &Server{
		pipe: pipe,
		mcpServer: mcpsdk.NewServer(
			&mcpsdk.Implementation{
				Name:    "policygate",
				Version: "0.1.0",
			},
			nil,
		),
	}
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all policygate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_ingest",
		Description: "Submit an extraction payload (one policy with its rules). Rejected payloads return every validation problem at once.",
	}, s.handleIngest)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_pending",
		Description: "List rules awaiting clarification, with the fields that likely need to be supplied.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_clarify",
		Description: "Apply a clarification to an ambiguous rule. Scalar fields overwrite when supplied; conditions append.",
	}, s.handleClarify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_finalize",
		Description: "Generate one task per rule of a policy. Fails naming the unresolved rules if any ambiguity remains.",
	}, s.handleFinalize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_tasks",
		Description: "List tasks, optionally filtered by assigned role. Admin sees everything.",
	}, s.handleTasks)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_advance",
		Description: "Advance a task to a new status as an acting role. Invalid transitions and role mismatches return their error kind.",
	}, s.handleAdvance)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_escalate",
		Description: "Escalate an in-progress task to the next role up the chain (Clerk to Officer to Admin).",
	}, s.handleEscalate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_audit",
		Description: "Query the audit trail, newest first, optionally for one task or policy.",
	}, s.handleAudit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policygate_stats",
		Description: "Dashboard counts: policies, rules by ambiguity, tasks by status.",
	}, s.handleStats)
}
