// Package cases exposes read-only case data over HTTP for dashboards and
// operational tooling. Mutations go through the realtime gateway only.
package cases

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/store"
)

// NewListHandler returns an HTTP handler exposing cases via GET /api/cases.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewListHandler(repo store.CaseRepository, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := store.Filter{ReporterID: r.URL.Query().Get("reporter")}
		if s := r.URL.Query().Get("status"); s != "" {
			st := model.CaseStatus(strings.ToUpper(s))
			if !validStatus(st) {
				http.Error(w, "unknown status", http.StatusBadRequest)
				return
			}
			f.Status = st
		}
		records, err := repo.List(r.Context(), f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewGetHandler returns an HTTP handler exposing one case via
// GET /api/cases/{id}.
func NewGetHandler(repo store.CaseRepository, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/cases/")
		if id == "" || strings.Contains(id, "/") {
			http.Error(w, "case id required", http.StatusBadRequest)
			return
		}
		c, err := repo.Load(r.Context(), id)
		if errors.Is(err, store.ErrCaseNotFound) {
			http.Error(w, "case not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewMux mounts both case handlers on a fresh ServeMux.
func NewMux(repo store.CaseRepository, token string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/cases", NewListHandler(repo, token))
	mux.Handle("/api/cases/", NewGetHandler(repo, token))
	return mux
}

func authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func validStatus(s model.CaseStatus) bool {
	switch s {
	case model.StatusPending, model.StatusAssigned, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled:
		return true
	}
	return false
}
