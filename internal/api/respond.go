package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/p-n-ai/worldnet/internal/compare"
	"github.com/p-n-ai/worldnet/internal/quiz"
)

var (
	errUnknownCountry = errors.New("unknown country")
	errUnknownMetric  = errors.New("unknown metric")
	errBadRequest     = errors.New("bad request")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, quiz.ErrNoCountries),
		errors.Is(err, compare.ErrInvalidMetric):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrSessionNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, errUnknownCountry),
		errors.Is(err, errUnknownMetric):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrSessionCompleted),
		errors.Is(err, quiz.ErrSessionConflict),
		errors.Is(err, compare.ErrDuplicateMetric):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// splitCodes parses "fr, de" into ["FR", "DE"].
// splitCodes parses a comma-separated code list, dropping repeats.
func splitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

// queryInt reads a positive integer parameter capped at maxValue.
func queryInt(r *http.Request, key string, fallback, maxValue int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, key)
	}
	return min(n, maxValue), nil
}
