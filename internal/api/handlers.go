package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smarttoc/smarttoc/internal/refine"
	"github.com/smarttoc/smarttoc/internal/session"
	"github.com/smarttoc/smarttoc/internal/toc"
)

// handleOpenDocument opens and validates a PDF, replacing any previous
// session state.
func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		jsonError(w, "body must be JSON with a non-empty 'path'", http.StatusBadRequest)
		return
	}

	doc, err := s.session.Load(req.Path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

// handleGenerate runs heuristic extraction over the open document.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.checkDocID(w, r) {
		return
	}

	tree, err := s.session.Generate()
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleRefine re-scores the tree with an LLM provider. Credentials
// come from the request body, falling back to server configuration.
func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	if !s.checkDocID(w, r) {
		return
	}

	var req struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
		Endpoint string `json:"endpoint"`
		Model    string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	cfg := refine.Config{
		Provider: refine.Provider(s.cfg.LLMProvider),
		APIKey:   s.cfg.LLMAPIKey,
		Endpoint: s.cfg.LLMEndpoint,
		Model:    s.cfg.LLMModel,
	}
	if req.Provider != "" {
		cfg.Provider = refine.Provider(req.Provider)
	}
	if req.APIKey != "" {
		cfg.APIKey = req.APIKey
	}
	if req.Endpoint != "" {
		cfg.Endpoint = req.Endpoint
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}

	tree, err := s.session.Refine(r.Context(), cfg, s.cfg.LLMBatch, nil)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleSave writes the tree into a copy of the source PDF as
// bookmarks.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if !s.checkDocID(w, r) {
		return
	}

	var req struct {
		OutputPath string `json:"output_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OutputPath == "" {
		jsonError(w, "body must be JSON with a non-empty 'output_path'", http.StatusBadRequest)
		return
	}

	if err := s.session.Save(req.OutputPath); err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"saved": req.OutputPath})
}

// handleTree returns the current forest.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, treeResponse(s.session.Tree()))
}

// handleAddEntry inserts a manual entry.
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label    string `json:"label"`
		Page     int    `json:"page"`
		Level    int    `json:"level"`
		ParentID string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Level == 0 {
		req.Level = 1
	}

	tree, err := s.session.AddEntry(req.Label, req.Level, req.Page, req.ParentID)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, treeResponse(tree))
}

// handleReorder permutes the children of one parent.
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID string   `json:"parent_id"`
		IDs      []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		jsonError(w, "body must be JSON with a non-empty 'ids' array", http.StatusBadRequest)
		return
	}

	tree, err := s.session.Reorder(req.ParentID, req.IDs)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleEditLabel renames an entry.
func (s *Server) handleEditLabel(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	tree, err := s.session.EditLabel(nodeID, req.Label)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleDeleteEntry removes an entry and its subtree.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	tree, err := s.session.Delete(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleConfirmEntry marks an entry as human-verified.
func (s *Server) handleConfirmEntry(w http.ResponseWriter, r *http.Request) {
	tree, err := s.session.Confirm(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.sessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treeResponse(tree))
}

// handleAuditTrail returns the append-only event list.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries := s.session.Audit()
	writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// checkDocID verifies the document segment of the URL names the open
// document. The session holds one document at a time; "current" is
// accepted as an alias.
func (s *Server) checkDocID(w http.ResponseWriter, r *http.Request) bool {
	doc := s.session.Document()
	if doc == nil {
		jsonError(w, "no document is open", http.StatusConflict)
		return false
	}

	docID := chi.URLParam(r, "docID")
	if docID != "current" && docID != doc.Name {
		jsonError(w, "unknown document: "+docID, http.StatusNotFound)
		return false
	}
	return true
}

// sessionError maps session failures to HTTP status codes.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrNoTree):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrNodeNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrEmptyLabel):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusBadRequest)
	}
}

func treeResponse(tree []*toc.Node) map[string]any {
	if tree == nil {
		tree = []*toc.Node{}
	}
	return map[string]any{
		"toc":   tree,
		"count": toc.Count(tree),
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
