// Package api is the thin HTTP read/trigger surface over the catalog and
// the enrichment orchestrator (spec'd as an external collaborator, not a
// core component — see SPEC_FULL.md §6). It uses net/http.ServeMux in the
// teacher's no-framework style: one handler method per route, hand-rolled
// JSON encode/decode, no router dependency.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"kaggledb-core/cache"
	"kaggledb-core/catalog"
	"kaggledb-core/orchestrator"
)

// Server wires the catalog and orchestrator into an http.Handler.
type Server struct {
	store *catalog.Store
	orch  *orchestrator.Orchestrator
	cache cache.Cache
	mux   *http.ServeMux
}

// New builds a Server and registers all routes.
func New(store *catalog.Store, orch *orchestrator.Orchestrator, c cache.Cache) *Server {
	s := &Server{store: store, orch: orch, cache: c, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /competitions", s.listCompetitions)
	s.mux.HandleFunc("GET /competitions/new", s.newCompetitions)
	s.mux.HandleFunc("GET /competitions/{id}", s.getCompetition)
	s.mux.HandleFunc("PATCH /competitions/{id}/favorite", s.toggleFavorite)
	s.mux.HandleFunc("POST /competitions/{id}/metadata/fetch", s.fetchMetadata)
	s.mux.HandleFunc("POST /competitions/{id}/summary/generate", s.generateSummary)
	s.mux.HandleFunc("GET /competitions/{id}/discussions", s.listDiscussions)
	s.mux.HandleFunc("POST /competitions/{id}/discussions/fetch", s.fetchDiscussions)
	s.mux.HandleFunc("GET /competitions/{id}/solutions", s.listSolutions)
	s.mux.HandleFunc("POST /competitions/{id}/solutions/fetch", s.fetchDiscussions)
	s.mux.HandleFunc("GET /competitions/{id}/notebooks", s.listNotebooks)
	s.mux.HandleFunc("POST /competitions/{id}/notebooks/fetch", s.fetchNotebooks)

	s.mux.HandleFunc("GET /discussions/{id}", s.getDiscussion)
	s.mux.HandleFunc("GET /discussions/{id}/content", s.discussionContent)
	s.mux.HandleFunc("POST /discussions/{id}/fetch", s.fetchDiscussionDetail)

	s.mux.HandleFunc("GET /solutions/{id}/content", s.solutionContent)
	s.mux.HandleFunc("POST /solutions/{id}/fetch", s.fetchSolutionDetail)
	s.mux.HandleFunc("POST /solutions/{id}/summarize", s.fetchSolutionDetail)

	s.mux.HandleFunc("POST /notebooks/{id}/summarize", s.summarizeNotebook)

	s.mux.HandleFunc("GET /tags", s.listTags)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("encode response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathID64 parses an int64 path parameter, writing a 400 on failure.
func pathID64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b := v == "true" || v == "1"
	return &b
}

func queryCSV(r *http.Request, key string) []string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type competitionsResponse struct {
	Items          []catalog.Competition `json:"items"`
	Total          int                   `json:"total"`
	ActiveCount    int                   `json:"active_count"`
	CompletedCount int                   `json:"completed_count"`
	Page           int                   `json:"page"`
	Limit          int                   `json:"limit"`
	TotalPages     int                   `json:"total_pages"`
}

func (s *Server) listCompetitions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	filter := catalog.CompetitionFilter{
		Status:     r.URL.Query().Get("status"),
		Domain:     r.URL.Query().Get("domain"),
		Search:     r.URL.Query().Get("search"),
		IsFavorite: queryBool(r, "is_favorite"),
		DataTypes:  queryCSV(r, "data_types"),
		TaskTypes:  queryCSV(r, "task_types"),
		Tags:       queryCSV(r, "tags"),
		SortBy:     r.URL.Query().Get("sort_by"),
		Descending: strings.EqualFold(r.URL.Query().Get("order"), "desc"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	items, err := s.store.ListCompetitions(filter)
	if err != nil {
		slog.Error("list competitions", "error", err)
		writeError(w, http.StatusInternalServerError, "listing competitions failed")
		return
	}

	active, _ := s.store.CountCompetitionsByStatus("active")
	completed, _ := s.store.CountCompetitionsByStatus("completed")

	total, err := s.store.CountCompetitions(filter)
	if err != nil {
		slog.Error("count competitions", "error", err)
		writeError(w, http.StatusInternalServerError, "counting competitions failed")
		return
	}
	totalPages := 1
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
		if totalPages < 1 {
			totalPages = 1
		}
	}

	writeJSON(w, http.StatusOK, competitionsResponse{
		Items:          items,
		Total:          total,
		ActiveCount:    active,
		CompletedCount: completed,
		Page:           page,
		Limit:          limit,
		TotalPages:     totalPages,
	})
}

func (s *Server) newCompetitions(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days < 1 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}
	limit := queryInt(r, "limit", 0)

	items, err := s.store.ListCompetitions(catalog.CompetitionFilter{SortBy: "created_at", Descending: true, Limit: limit})
	if err != nil {
		slog.Error("list new competitions", "error", err)
		writeError(w, http.StatusInternalServerError, "listing competitions failed")
		return
	}

	count, err := s.store.CountNewCompetitions(days)
	if err != nil {
		slog.Error("count new competitions", "error", err)
		writeError(w, http.StatusInternalServerError, "counting competitions failed")
		return
	}
	// items are sorted newest first, so the first count of them are the
	// competitions created in the last `days` days.
	if count < len(items) {
		items = items[:count]
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCompetition(r.PathValue("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "competition not found")
		return
	}
	if err != nil {
		slog.Error("get competition", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.store.GetCompetition(id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "competition not found")
		return
	}
	if err != nil {
		slog.Error("get competition", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	newValue := !c.IsFavorite
	deleted, err := s.store.SetFavorite(id, newValue)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "competition not found")
		return
	}
	if err != nil {
		slog.Error("set favorite", "error", err)
		writeError(w, http.StatusInternalServerError, "updating favorite failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"is_favorite":        newValue,
		"deleted_discussions": deleted,
	})
}

func (s *Server) fetchMetadata(w http.ResponseWriter, r *http.Request) {
	c, err := s.orch.IngestCompetitionMetadata(r.Context(), r.PathValue("id"))
	if errors.Is(err, orchestrator.ErrNotFound) {
		writeError(w, http.StatusNotFound, "competition page not found")
		return
	}
	if err != nil {
		slog.Error("ingest competition metadata", "error", err)
		writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) generateSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.EnrichCompetition(r.Context(), id); err != nil {
		slog.Error("enrich competition", "error", err)
		writeError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}
	c, err := s.store.GetCompetition(id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "competition not found")
		return
	}
	if err != nil {
		slog.Error("get competition", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func listParams(r *http.Request) (sortBy string, descending bool, limit int) {
	return r.URL.Query().Get("sort_by"), strings.EqualFold(r.URL.Query().Get("order"), "desc"), queryInt(r, "limit", 0)
}

func (s *Server) listDiscussions(w http.ResponseWriter, r *http.Request) {
	sortBy, desc, limit := listParams(r)
	items, err := s.store.ListDiscussions(r.PathValue("id"), sortBy, desc, limit)
	if err != nil {
		slog.Error("list discussions", "error", err)
		writeError(w, http.StatusInternalServerError, "listing discussions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) fetchDiscussions(w http.ResponseWriter, r *http.Request) {
	pages := queryInt(r, "pages", 3)
	discussions, solutions, err := s.orch.IngestDiscussions(r.Context(), r.PathValue("id"), pages)
	if err != nil {
		slog.Error("ingest discussions", "error", err)
		writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discussions": discussions,
		"solutions":   solutions,
	})
}

func (s *Server) listSolutions(w http.ResponseWriter, r *http.Request) {
	sortBy, desc, limit := listParams(r)
	items, err := s.store.ListSolutions(r.PathValue("id"), sortBy, desc, limit)
	if err != nil {
		slog.Error("list solutions", "error", err)
		writeError(w, http.StatusInternalServerError, "listing solutions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) listNotebooks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	items, err := s.store.ListNotebooks(r.PathValue("id"), limit)
	if err != nil {
		slog.Error("list notebooks", "error", err)
		writeError(w, http.StatusInternalServerError, "listing notebooks failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) fetchNotebooks(w http.ResponseWriter, r *http.Request) {
	counters, err := s.orch.FetchNotebooks(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("fetch notebooks", "error", err)
		writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (s *Server) getDiscussion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	d, err := s.store.GetDiscussion(id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "discussion not found")
		return
	}
	if err != nil {
		slog.Error("get discussion", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) fetchDiscussionDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	if err := s.orch.FetchDiscussionDetail(r.Context(), id); err != nil {
		s.respondDetailError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) discussionContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	s.serveContent(w, r.Context(), cache.DiscussionContentKey(int(id)), cache.DiscussionTranslatedKey(int(id)))
}

func (s *Server) solutionContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	s.serveContent(w, r.Context(), cache.SolutionContentKey(int(id)), cache.SolutionTranslatedKey(int(id)))
}

func (s *Server) serveContent(w http.ResponseWriter, ctx context.Context, contentKey, translatedKey string) {
	body, ok := s.cache.Get(ctx, contentKey)
	if !ok {
		writeError(w, http.StatusNotFound, "content not cached; fetch the detail first")
		return
	}
	translated, _ := s.cache.Get(ctx, translatedKey)
	ttl, _ := s.cache.TTL(ctx, contentKey)

	writeJSON(w, http.StatusOK, map[string]any{
		"content":        body,
		"translated":     translated,
		"ttl_seconds":    int(ttl.Seconds()),
	})
}

func (s *Server) fetchSolutionDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	if err := s.orch.FetchSolutionDetail(r.Context(), id); err != nil {
		s.respondDetailError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) summarizeNotebook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r, "id")
	if !ok {
		return
	}
	if err := s.orch.SummarizeNotebookDetail(r.Context(), id); err != nil {
		s.respondDetailError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondDetailError maps an orchestrator detail-fetch error to the
// spec's 404/500 contract: missing catalog rows and 404 upstream pages
// both mean "not found"; anything else is an acquisition failure.
func (s *Server) respondDetailError(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrNotFound) || errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error("orchestrator detail op failed", "error", err)
	writeError(w, http.StatusInternalServerError, "fetch failed")
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	tags, err := s.store.ListTags(category)
	if err != nil {
		slog.Error("list tags", "error", err)
		writeError(w, http.StatusInternalServerError, "listing tags failed")
		return
	}

	if r.URL.Query().Get("group_by_category") != "true" {
		writeJSON(w, http.StatusOK, map[string]any{"items": tags})
		return
	}

	grouped := make(map[string][]catalog.Tag)
	for _, t := range tags {
		grouped[t.Category] = append(grouped[t.Category], t)
	}
	writeJSON(w, http.StatusOK, grouped)
}
