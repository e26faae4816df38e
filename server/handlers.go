package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/domain"
)

const (
	feedKindGeneral = "general"
	feedKindRecent  = "recent"
)

// statusHandler returns server and session status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	view := s.dashboard.View()
	status := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"time":     time.Now().UTC(),
		"state":    view.State,
		"sources":  view.Status,
		"revision": view.Revision,
	}
	if err := s.records.Ping(r.Context()); err != nil {
		lgr.Printf("[WARN] store ping failed: %v", err)
		status["status"] = "degraded"
		status["store_error"] = err.Error()
	}
	renderJSON(w, r, http.StatusOK, status)
}

// dashboardHandler returns the full published view
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.dashboard.View())
}

// statsHandler returns statistics and per-source status
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	view := s.dashboard.View()
	renderJSON(w, r, http.StatusOK, map[string]any{
		"statistics": view.Statistics,
		"status":     view.Status,
		"errors":     view.Errors,
		"revision":   view.Revision,
	})
}

// feedHandler returns the merged feed, ?kind=recent for the recent activity feed
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := feedKind(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	view := s.dashboard.View()
	entries := view.Feed
	if kind == feedKindRecent {
		entries = view.RecentActivity
	}
	if entries == nil {
		entries = []domain.FeedEntry{}
	}
	renderJSON(w, r, http.StatusOK, map[string]any{"kind": kind, "entries": entries, "revision": view.Revision})
}

// sourcesHandler returns configured sources
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.dashboard.Sources())
}

// getIdentityHandler returns the active identity
func (s *Server) getIdentityHandler(w http.ResponseWriter, r *http.Request) {
	id := s.identities.Current()
	if id == nil {
		renderError(w, r, errors.New("no identity"), http.StatusNotFound)
		return
	}
	renderJSON(w, r, http.StatusOK, id)
}

// setIdentityHandler switches the session to another identity
func (s *Server) setIdentityHandler(w http.ResponseWriter, r *http.Request) {
	var id domain.Identity
	if err := json.NewDecoder(r.Body).Decode(&id); err != nil {
		renderError(w, r, fmt.Errorf("invalid identity: %w", err), http.StatusBadRequest)
		return
	}
	id.ID, id.Email = strings.TrimSpace(id.ID), strings.TrimSpace(id.Email)
	if id.ID == "" && id.Email == "" {
		renderError(w, r, errors.New("identity id or email required"), http.StatusBadRequest)
		return
	}

	s.identities.Set(&id)
	renderJSON(w, r, http.StatusOK, id)
}

// clearIdentityHandler signs the session out
func (s *Server) clearIdentityHandler(w http.ResponseWriter, r *http.Request) {
	s.identities.Set(nil)
	w.WriteHeader(http.StatusNoContent)
}

// putRecordHandler inserts or replaces a record
func (s *Server) putRecordHandler(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")

	var req struct {
		Type   string         `json:"type"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid record: %w", err), http.StatusBadRequest)
		return
	}

	rec := domain.Record{ID: id, Type: req.Type, Fields: req.Fields}
	if err := s.records.PutRecord(r.Context(), collection, rec); err != nil {
		lgr.Printf("[ERROR] failed to put record %s/%s: %v", collection, id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"collection": collection, "id": id})
}

// deleteRecordHandler removes a record
func (s *Server) deleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	if err := s.records.DeleteRecord(r.Context(), collection, id); err != nil {
		lgr.Printf("[ERROR] failed to delete record %s/%s: %v", collection, id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rssHandler serves the merged feed as RSS, ?kind=recent for recent activity
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := feedKind(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.rss.GenerateRSS(s.dashboard.View(), kind == feedKindRecent)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate RSS: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(out)); err != nil {
		lgr.Printf("[WARN] failed to write RSS response: %v", err)
	}
}

func feedKind(r *http.Request) (string, error) {
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", feedKindGeneral:
		return feedKindGeneral, nil
	case feedKindRecent:
		return feedKindRecent, nil
	default:
		return "", fmt.Errorf("unknown feed kind %q", kind)
	}
}
