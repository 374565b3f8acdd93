package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joeybe1/secsplit"
	"github.com/joeybe1/secsplit/compose"
	"github.com/joeybe1/secsplit/integrity"
)

type handler struct {
	engine secsplit.Engine
}

func newHandler(e secsplit.Engine) *handler {
	return &handler{engine: e}
}

// POST /files?path=doc.md — body is the file's raw bytes.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	data, err := readAll(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	id, err := h.engine.Ingest(ctx, path, data)
	if err != nil {
		writeEngineError(w, "ingest", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file_id": id,
		"path":    path,
	})
}

// GET /sections/{id}
func (h *handler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sec, err := h.engine.GetSection(r.Context(), id)
	if err != nil {
		writeEngineError(w, "get_section", err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// GET /sections/{id}/first-child
func (h *handler) handleFirstChild(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sec, err := h.engine.FirstChild(r.Context(), id)
	if err != nil {
		writeEngineError(w, "first_child", err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// GET /sections/{id}/next-sibling
func (h *handler) handleNextSibling(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sec, err := h.engine.NextSibling(r.Context(), id)
	if err != nil {
		writeEngineError(w, "next_sibling", err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// GET /files/{path...}/tree
func (h *handler) handleTree(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	nodes, err := h.engine.Tree(r.Context(), path)
	if err != nil {
		writeEngineError(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
}

// GET /files/{path...}/recompose
func (h *handler) handleRecompose(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	data, err := h.engine.Recompose(r.Context(), path)
	if err != nil {
		writeEngineError(w, "recompose", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// GET /files/{path...}/validate
func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	res, err := h.engine.Validate(r.Context(), path)
	if err != nil {
		writeEngineError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DELETE /files/{path...}
func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	if err := h.engine.Delete(r.Context(), path); err != nil {
		writeEngineError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /search?q=...&scope=...&k=...
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	scope := r.URL.Query().Get("scope")
	k := queryInt(r, "k", 0)

	hits, err := h.engine.Search(r.Context(), q, scope, k)
	if err != nil {
		writeEngineError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

// GET /search/blended?q=...&w=...&k=...
func (h *handler) handleSearchBlended(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	k := queryInt(r, "k", 0)
	weight := -1.0
	if raw := r.URL.Query().Get("w"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			weight = parsed
		}
	}

	outcome, err := h.engine.SearchBlended(r.Context(), q, weight, k)
	if err != nil {
		writeEngineError(w, "search_blended", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// POST /compose  body: {"section_ids": [...], "output_path": "...", "metadata": {...}}
func (h *handler) handleCompose(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		SectionIDs []int64          `json:"section_ids"`
		OutputPath string           `json:"output_path"`
		Metadata   compose.Metadata `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OutputPath == "" || len(req.SectionIDs) == 0 {
		writeError(w, http.StatusBadRequest, "section_ids and output_path are required")
		return
	}

	data, hash, err := h.engine.Compose(ctx, req.SectionIDs, req.OutputPath, req.Metadata)
	if err != nil {
		writeEngineError(w, "compose", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"output_path":  req.OutputPath,
		"content_hash": hash,
		"bytes":        len(data),
	})
}

// POST /integrity — runs the integrity runner over the whole corpus.
func (h *handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	report, err := integrity.Run(ctx, h.engine.Store())
	if err != nil {
		writeEngineError(w, "integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeEngineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, secsplit.ErrNotFound) {
		status = http.StatusNotFound
	} else if errors.Is(err, secsplit.ErrInvalidConfig) || errors.Is(err, secsplit.ErrInputMalformed) {
		status = http.StatusBadRequest
	}
	slog.Error(op+" error", "error", err)
	writeError(w, status, err.Error())
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pathParam(r *http.Request) string {
	return r.PathValue("path")
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func readAll(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
