package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/p-n-ai/worldnet/internal/country"
)

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := s.countries.Countries(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		if all, err = s.cache.Search(ctx, query); err != nil {
			writeError(w, err)
			return
		}
	}
	if region := q.Get("region"); region != "" {
		var filtered []country.Country
		for _, c := range all {
			if strings.EqualFold(c.Region, region) {
				filtered = append(filtered, c)
			}
		}
		all = filtered
	}
	if all == nil {
		all = []country.Country{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	c, err := s.lookup(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// lookup finds one country, preferring the offline cache.
func (s *Server) lookup(ctx context.Context, code string) (country.Country, error) {
	c, ok, err := s.cache.CountryByCode(ctx, code)
	if err == nil && ok {
		return c, nil
	}

	all, err := s.countries.Countries(ctx)
	if err != nil {
		return country.Country{}, err
	}
	for _, c := range all {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return country.Country{}, fmt.Errorf("%w: %s", errUnknownCountry, code)
}
