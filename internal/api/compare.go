package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/p-n-ai/worldnet/internal/compare"
)

type compareResponse struct {
	Countries []compare.Record `json:"countries"`
	Results   compare.Results  `json:"results"`
	Summary   string           `json:"summary"`
}

// records resolves a comma-separated codes parameter.
func (s *Server) records(ctx context.Context, param string) ([]compare.Record, error) {
	codes := splitCodes(param)
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: codes is required", errBadRequest)
	}
	out := make([]compare.Record, 0, len(codes))
	for _, code := range codes {
		c, err := s.lookup(ctx, code)
		if err != nil {
			return nil, err
		}
		out = append(out, compare.FromCountry(c))
	}
	return out, nil
}

func (s *Server) metric(r *http.Request) (string, error) {
	id := r.URL.Query().Get("metric")
	if id == "" {
		return "", fmt.Errorf("%w: metric is required", errBadRequest)
	}
	if _, ok := s.comparator.Metric(id); !ok {
		return "", fmt.Errorf("%w: %s", errUnknownMetric, id)
	}
	return id, nil
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	records, err := s.records(r.Context(), r.URL.Query().Get("codes"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{
		Countries: records,
		Results:   s.comparator.Compare(records),
		Summary:   s.comparator.Summary(records),
	})
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	metric, err := s.metric(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.records(r.Context(), r.URL.Query().Get("codes"))
	if err != nil {
		writeError(w, err)
		return
	}
	winner, _ := s.comparator.Winner(records, metric)
	writeJSON(w, http.StatusOK, map[string]any{"metric": metric, "winner": winner})
}

func (s *Server) handleDifference(w http.ResponseWriter, r *http.Request) {
	metric, err := s.metric(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	if q.Get("a") == "" || q.Get("b") == "" {
		writeError(w, fmt.Errorf("%w: a and b are required", errBadRequest))
		return
	}
	records, err := s.records(r.Context(), q.Get("a")+","+q.Get("b"))
	if err != nil {
		writeError(w, err)
		return
	}
	a, b := records[0], records[1]
	writeJSON(w, http.StatusOK, map[string]any{
		"a":          a.Code,
		"b":          b.Code,
		"metric":     metric,
		"percentage": s.comparator.PercentageDifference(a, b, metric),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	metric, err := s.metric(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.records(r.Context(), r.URL.Query().Get("codes"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.comparator.ChartData(records, metric))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := s.lookup(ctx, r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	all, err := s.countries.Countries(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var candidates []compare.Record
	for _, c := range all {
		if c.Code != target.Code {
			candidates = append(candidates, compare.FromCountry(c))
		}
	}
	best, score, ok := s.comparator.MostSimilar(compare.FromCountry(target), candidates)
	if !ok {
		writeError(w, fmt.Errorf("%w: no other countries to compare", errUnknownCountry))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"country":      target.Code,
		"most_similar": best,
		"score":        score,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.comparator.MetricInfo())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.records(r.Context(), r.URL.Query().Get("codes"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.comparator.ExportXLSX(&buf, records); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="comparison.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
