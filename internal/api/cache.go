package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/p-n-ai/worldnet/internal/country"
	"github.com/p-n-ai/worldnet/internal/offline"
)

type cacheStatus struct {
	Valid    bool              `json:"valid"`
	Size     string            `json:"size"`
	Metadata *offline.Metadata `json:"metadata,omitempty"`
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := cacheStatus{
		Valid: s.cache.IsValid(ctx),
		Size:  s.cache.Size(ctx),
	}
	meta, err := s.cache.Metadata(ctx)
	switch {
	case err == nil:
		status.Metadata = &meta
	case !errors.Is(err, offline.ErrCacheMiss):
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countries, err := s.catalog.Countries(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	written, err := s.cache.Preload(ctx, countries)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"written": written, "countries": len(countries)})
}

func (s *Server) handleCacheUpdate(w http.ResponseWriter, r *http.Request) {
	var patches []country.Patch
	if err := decodeJSON(w, r, &patches); err != nil {
		writeError(w, err)
		return
	}
	for i := range patches {
		patches[i].Code = strings.ToUpper(strings.TrimSpace(patches[i].Code))
	}
	if err := s.cache.Update(r.Context(), patches); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
