package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/keyword"
	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/registry"
	"github.com/hyperjump/hive/internal/scheme"
	"github.com/hyperjump/hive/internal/storage"
	"github.com/hyperjump/hive/internal/termindex"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 500
)

type ctxKey struct{}

// schemeSummary is one row of the scheme listing.
type schemeSummary struct {
	Name      string `json:"name"`
	LongName  string `json:"long_name"`
	URI       string `json:"uri"`
	FirstTime bool   `json:"first_time"`
}

type entriesResponse struct {
	Scheme  string             `json:"scheme"`
	Prefix  string             `json:"prefix"`
	Count   int                `json:"count"`
	Entries []models.TermEntry `json:"entries"`
}

type searchResponse struct {
	Scheme string             `json:"scheme"`
	Query  string             `json:"query"`
	Hits   []*keyword.TermHit `json:"hits"`
}

type schemeStatus struct {
	ID         string            `json:"id"`
	Statistics models.Statistics `json:"statistics"`
	AlphaTerms int               `json:"alpha_terms"`
}

// withScheme resolves {name} to the active descriptor or responds 404.
func (s *Server) withScheme(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		d, ok := s.registry.Get(name)
		if !ok {
			s.respondError(w, http.StatusNotFound, "scheme not found: "+name)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, d)))
	})
}

func descriptorFrom(r *http.Request) *scheme.Descriptor {
	d, _ := r.Context().Value(ctxKey{}).(*scheme.Descriptor)
	return d
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	out := make([]schemeSummary, 0, len(names))
	for _, name := range names {
		d, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, schemeSummary{
			Name:      name,
			LongName:  d.LongName(),
			URI:       d.SchemaURI(),
			FirstTime: d.FirstTime(),
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"schemes": out})
}

func (s *Server) handleGetScheme(w http.ResponseWriter, r *http.Request) {
	info := descriptorFrom(r).Info()
	info.Name = chi.URLParam(r, "name")
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleAlpha(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	s.respondEntries(w, r, prefix, descriptorFrom(r).AlphaIndexStartingWith(prefix))
}

func (s *Server) handleTopConcepts(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	s.respondEntries(w, r, prefix, descriptorFrom(r).TopConceptIndexStartingWith(prefix))
}

func (s *Server) respondEntries(w http.ResponseWriter, r *http.Request, prefix string, idx *termindex.Index) {
	entries := idx.Entries()
	s.respondJSON(w, http.StatusOK, entriesResponse{
		Scheme:  chi.URLParam(r, "name"),
		Prefix:  prefix,
		Count:   len(entries),
		Entries: entries,
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(term); err == nil {
			term = unescaped
		}
	}
	concept, ok := descriptorFrom(r).AlphaIndex().Get(term)
	if !ok {
		s.respondError(w, http.StatusNotFound, "term not found")
		return
	}
	s.respondJSON(w, http.StatusOK, models.TermEntry{Term: term, Concept: concept})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultSearchLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	var opts *keyword.SearchOptions
	if v := q.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid fuzzy")
			return
		}
		opts = &keyword.SearchOptions{FuzzyEnabled: fuzzy}
	}
	s.logger.Debug("term search request", zap.String("scheme", name), zap.String("query", query), zap.Int("limit", limit))
	hits, err := s.registry.Search(r.Context(), name, query, limit, opts)
	if err != nil {
		if errors.Is(err, registry.ErrSearchDisabled) {
			s.respondError(w, http.StatusNotImplemented, err.Error())
			return
		}
		s.logger.Error("term search failed", zap.String("scheme", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []*keyword.TermHit{}
	}
	s.respondJSON(w, http.StatusOK, searchResponse{Scheme: name, Query: query, Hits: hits})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("reload request", zap.String("scheme", name))
	d, err := s.registry.Reload(r.Context(), name)
	if err != nil {
		if errors.Is(err, registry.ErrSchemeNotFound) || errors.Is(err, config.ErrConfigNotFound) {
			s.respondError(w, http.StatusNotFound, "scheme not found: "+name)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"scheme": name, "id": d.ID(), "status": "reloaded"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	schemes := make(map[string]schemeStatus, len(names))
	var paths []string
	for _, name := range names {
		d, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		schemes[name] = schemeStatus{ID: d.ID(), Statistics: d.Statistics(), AlphaTerms: d.AlphaIndex().Len()}
		paths = append(paths, d.IndexDirectory(), d.StoreDirectory(), d.AlphaFilePath(), d.TopConceptIndexPath())
	}
	resp := map[string]interface{}{
		"scheme_count":   len(names),
		"schemes":        schemes,
		"search_enabled": s.registry.SearchEnabled(),
		"config_dir":     s.registry.ConfigDir(),
	}
	if s.config != nil {
		if dir := s.config.Storage.SearchIndexDir; dir != "" {
			paths = append(paths, dir)
		}
	}
	diskBytes, err := storage.DiskUsageBytes(paths...)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
