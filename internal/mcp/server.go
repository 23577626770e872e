package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smarttoc/smarttoc/internal/audit"
	"github.com/smarttoc/smarttoc/internal/config"
	"github.com/smarttoc/smarttoc/internal/descriptions"
	"github.com/smarttoc/smarttoc/internal/refine"
	"github.com/smarttoc/smarttoc/internal/session"
	"github.com/smarttoc/smarttoc/internal/toc"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *session.Session
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, sess *session.Session) (*Server, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		session:   sess,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	openTool := mcp.NewTool(
		"toc_open_document",
		mcp.WithDescription(descriptions.GetToolDescription("toc_open_document")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(openTool, s.handleOpenDocument)

	generateTool := mcp.NewTool(
		"toc_generate",
		mcp.WithDescription(descriptions.GetToolDescription("toc_generate")),
	)
	s.mcpServer.AddTool(generateTool, s.handleGenerate)

	refineTool := mcp.NewTool(
		"toc_refine",
		mcp.WithDescription(descriptions.GetToolDescription("toc_refine")),
		mcp.WithString("provider",
			mcp.Description("Provider: 'openai' or 'azure' (defaults to server configuration)"),
		),
		mcp.WithString("api_key",
			mcp.Description("Provider API key (defaults to server configuration; used for this call only)"),
		),
		mcp.WithString("endpoint",
			mcp.Description("Full chat-completions endpoint URL (required for Azure)"),
		),
		mcp.WithString("model",
			mcp.Description("Model name (OpenAI only)"),
		),
	)
	s.mcpServer.AddTool(refineTool, s.handleRefine)

	editLabelTool := mcp.NewTool(
		"toc_edit_label",
		mcp.WithDescription(descriptions.GetToolDescription("toc_edit_label")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the TOC entry to rename"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("New label text"),
		),
	)
	s.mcpServer.AddTool(editLabelTool, s.handleEditLabel)

	deleteTool := mcp.NewTool(
		"toc_delete_entry",
		mcp.WithDescription(descriptions.GetToolDescription("toc_delete_entry")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the TOC entry to delete (children go with it)"),
		),
	)
	s.mcpServer.AddTool(deleteTool, s.handleDeleteEntry)

	confirmTool := mcp.NewTool(
		"toc_confirm_entry",
		mcp.WithDescription(descriptions.GetToolDescription("toc_confirm_entry")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the TOC entry to confirm"),
		),
	)
	s.mcpServer.AddTool(confirmTool, s.handleConfirmEntry)

	reorderTool := mcp.NewTool(
		"toc_reorder",
		mcp.WithDescription(descriptions.GetToolDescription("toc_reorder")),
		mcp.WithString("parent_id",
			mcp.Description("Id of the parent entry (empty for the top level)"),
		),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Comma-separated ids: the parent's existing children in the new order"),
		),
	)
	s.mcpServer.AddTool(reorderTool, s.handleReorder)

	addTool := mcp.NewTool(
		"toc_add_entry",
		mcp.WithDescription(descriptions.GetToolDescription("toc_add_entry")),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Label of the new entry"),
		),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("Target page number (1-based)"),
		),
		mcp.WithNumber("level",
			mcp.Description("Heading level, 1 = top level (default 1)"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Id of the parent entry (empty adds a top-level entry)"),
		),
	)
	s.mcpServer.AddTool(addTool, s.handleAddEntry)

	saveTool := mcp.NewTool(
		"toc_save",
		mcp.WithDescription(descriptions.GetToolDescription("toc_save")),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("Path of the PDF copy to write with the TOC as bookmarks"),
		),
	)
	s.mcpServer.AddTool(saveTool, s.handleSave)

	treeTool := mcp.NewTool(
		"toc_tree",
		mcp.WithDescription(descriptions.GetToolDescription("toc_tree")),
	)
	s.mcpServer.AddTool(treeTool, s.handleTree)

	auditTool := mcp.NewTool(
		"toc_audit_trail",
		mcp.WithDescription(descriptions.GetToolDescription("toc_audit_trail")),
	)
	s.mcpServer.AddTool(auditTool, s.handleAuditTrail)

	infoTool := mcp.NewTool(
		"toc_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("toc_server_info")),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleOpenDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.session.Load(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Opened document: %s\n", doc.Name)
	responseText += fmt.Sprintf("Path: %s\n", doc.Path)
	responseText += fmt.Sprintf("Pages: %d\n", doc.PageCount)
	responseText += fmt.Sprintf("Size: %d bytes\n", doc.Size)
	responseText += "\nNext step: call 'toc_generate' to extract the table of contents."

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := s.session.Generate()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Generated %d TOC entries.\n", toc.Count(tree))
	if unknown := countUnknown(tree); unknown > 0 {
		responseText += fmt.Sprintf("%d entries are flagged ambiguous; review, then confirm or delete them.\n", unknown)
	}
	responseText += "\n" + formatTree(tree)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleRefine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	cfg := refine.Config{
		Provider: refine.Provider(s.config.LLMProvider),
		APIKey:   s.config.LLMAPIKey,
		Endpoint: s.config.LLMEndpoint,
		Model:    s.config.LLMModel,
	}
	if v, ok := args["provider"].(string); ok && v != "" {
		cfg.Provider = refine.Provider(v)
	}
	if v, ok := args["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := args["endpoint"].(string); ok && v != "" {
		cfg.Endpoint = v
	}
	if v, ok := args["model"].(string); ok && v != "" {
		cfg.Model = v
	}

	tree, err := s.session.Refine(ctx, cfg, s.config.LLMBatch, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Refinement complete. The TOC now has %d entries.\n", toc.Count(tree))
	if unknown := countUnknown(tree); unknown > 0 {
		responseText += fmt.Sprintf("%d entries remain flagged ambiguous.\n", unknown)
	}
	responseText += "\n" + formatTree(tree)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleEditLabel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label, err := request.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tree, err := s.session.EditLabel(id, label)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Label updated.\n\n%s", formatTree(tree))), nil
}

func (s *Server) handleDeleteEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tree, err := s.session.Delete(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Entry deleted. %d entries remain.\n\n%s",
		toc.Count(tree), formatTree(tree))), nil
}

func (s *Server) handleConfirmEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tree, err := s.session.Confirm(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Entry confirmed.\n\n%s", formatTree(tree))), nil
}

func (s *Server) handleReorder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := request.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	parentID := ""
	if v, ok := args["parent_id"].(string); ok {
		parentID = v
	}

	orderedIDs := splitIDs(ids)
	if len(orderedIDs) == 0 {
		return mcp.NewToolResultError("ids must contain at least one id"), nil
	}

	tree, err := s.session.Reorder(parentID, orderedIDs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Entries reordered.\n\n%s", formatTree(tree))), nil
}

func (s *Server) handleAddEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label, err := request.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	page, ok := args["page"].(float64)
	if !ok {
		return mcp.NewToolResultError("page is required and must be a number"), nil
	}

	level := 1
	if v, ok := args["level"].(float64); ok {
		level = int(v)
	}
	parentID := ""
	if v, ok := args["parent_id"].(string); ok {
		parentID = v
	}

	tree, err := s.session.AddEntry(label, level, int(page), parentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Entry added.\n\n%s", formatTree(tree))), nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outputPath, err := request.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.session.Save(outputPath); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Saved the table of contents as PDF bookmarks to %s. The source document was not modified.",
		outputPath)), nil
}

func (s *Server) handleTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree := s.session.Tree()
	if tree == nil {
		return mcp.NewToolResultText("No TOC has been generated yet. Open a document and call 'toc_generate'."), nil
	}

	responseText := fmt.Sprintf("Table of contents (%d entries):\n\n%s", toc.Count(tree), formatTree(tree))
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleAuditTrail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.session.Audit()
	if len(entries) == 0 {
		return mcp.NewToolResultText("The audit trail is empty."), nil
	}

	return mcp.NewToolResultText(formatAudit(entries)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// Formatting methods
func formatTree(nodes []*toc.Node) string {
	if len(nodes) == 0 {
		return "(empty)"
	}

	var b strings.Builder
	var walk func(ns []*toc.Node, depth int)
	walk = func(ns []*toc.Node, depth int) {
		for _, n := range ns {
			b.WriteString(strings.Repeat("  ", depth))
			marker := ""
			switch n.Status {
			case toc.StatusUnknown:
				marker = " [?]"
			case toc.StatusUserConfirmed:
				marker = " [confirmed]"
			}
			fmt.Fprintf(&b, "- %s (page %d, level %d, confidence %.2f, id %s)%s\n",
				n.Label, n.Page, n.Level, n.Confidence, n.ID, marker)
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return b.String()
}

func formatAudit(entries []audit.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit trail (%d events):\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s: %s", i+1, e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Description)
		if e.NodeID != "" {
			fmt.Fprintf(&b, " (entry %s)", e.NodeID)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Server) formatServerInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "Working Directory: %s\n", s.config.PDFDirectory)
	fmt.Fprintf(&b, "Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	if s.config.HasRefinement() {
		fmt.Fprintf(&b, "Refinement: configured (%s)\n", s.config.LLMProvider)
	} else {
		b.WriteString("Refinement: not configured (pass an api_key to 'toc_refine' or set SMARTTOC_LLM_API_KEY)\n")
	}

	if doc := s.session.Document(); doc != nil {
		fmt.Fprintf(&b, "\nOpen Document: %s (%d pages)\n", doc.Name, doc.PageCount)
	} else {
		b.WriteString("\nOpen Document: none\n")
	}

	if files := listPDFs(s.config.PDFDirectory); len(files) > 0 {
		fmt.Fprintf(&b, "\nPDF files in working directory (%d found):\n", len(files))
		for i, name := range files {
			if i >= 10 { // Limit to first 10 files for readability
				fmt.Fprintf(&b, "   ... and %d more files\n", len(files)-10)
				break
			}
			fmt.Fprintf(&b, "   %d. %s\n", i+1, name)
		}
	} else {
		b.WriteString("\nPDF files in working directory: none found\n")
	}

	b.WriteString("\nAvailable Tools:\n")
	names := descriptions.GetAllToolNames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  • %s\n", name)
	}

	b.WriteString("\nTypical workflow: toc_open_document, toc_generate, optionally toc_refine, edit, then toc_save\n")
	return b.String()
}

func listPDFs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	return names
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func countUnknown(nodes []*toc.Node) int {
	count := 0
	for _, n := range toc.Flatten(nodes) {
		if n.Status == toc.StatusUnknown {
			count++
		}
	}
	return count
}

// Run starts the MCP server on standard I/O.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting smarttoc MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
