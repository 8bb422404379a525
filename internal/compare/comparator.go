package compare

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
)

const summaryTooFew = "Add at least 2 countries to compare"

// Score is one country's standing on one metric.
type Score struct {
	Value     float64 `json:"value"`
	Rank      int     `json:"rank"`
	Formatted string  `json:"formatted"`
}

// Results maps country code to metric id to Score.
type Results map[string]map[string]Score

// ChartPoint is one bar of a single-metric chart.
type ChartPoint struct {
	Country   string  `json:"country"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// Comparator ranks records over a mutable metric list. It is safe for
// concurrent use.
type Comparator struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewComparator creates a comparator. With no metrics it uses DefaultMetrics.
func NewComparator(metrics ...Metric) *Comparator {
	if len(metrics) == 0 {
		metrics = DefaultMetrics()
	}
	return &Comparator{metrics: slices.Clone(metrics)}
}

// Metrics returns a snapshot of the registered metrics.
func (c *Comparator) Metrics() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.metrics)
}

// MetricInfo describes the registered metrics in registration order.
func (c *Comparator) MetricInfo() []MetricInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MetricInfo, len(c.metrics))
	for i, m := range c.metrics {
		out[i] = m.info()
	}
	return out
}

// Metric looks up a metric by id.
func (c *Comparator) Metric(id string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.metrics {
		if m.ID == id {
			return m, true
		}
	}
	return Metric{}, false
}

// AddMetric registers a custom metric at the end of the list.
func (c *Comparator) AddMetric(m Metric) error {
	if m.ID == "" || m.Value == nil {
		return ErrInvalidMetric
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.metrics {
		if existing.ID == m.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.ID)
		}
	}
	c.metrics = append(c.metrics, m)
	return nil
}

// Compare ranks every record on every metric. Rank 1 is the best value;
// ties keep input order. A repeated code counts once, at its first
// occurrence, so ranks stay a permutation of 1..N over distinct codes.
func (c *Comparator) Compare(records []Record) Results {
	records = Unique(records)
	metrics := c.Metrics()
	results := make(Results, len(records))
	for _, r := range records {
		results[r.Code] = make(map[string]Score, len(metrics))
	}

	type entry struct {
		code  string
		value float64
	}
	for _, m := range metrics {
		values := make([]entry, len(records))
		for i, r := range records {
			values[i] = entry{code: r.Code, value: m.Value(r)}
		}
		slices.SortStableFunc(values, func(a, b entry) int {
			if m.HigherIsBetter {
				return cmp.Compare(b.value, a.value)
			}
			return cmp.Compare(a.value, b.value)
		})
		for i, e := range values {
			results[e.code][m.ID] = Score{
				Value:     e.value,
				Rank:      i + 1,
				Formatted: m.format(e.value),
			}
		}
	}
	return results
}

// Unique drops records whose code already appeared earlier in the slice.
func Unique(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		out = append(out, r)
	}
	return out
}

// Winner returns the best record for the metric. The first record holds
// ties. It reports false for an unknown metric or no records.
func (c *Comparator) Winner(records []Record, metricID string) (Record, bool) {
	m, ok := c.Metric(metricID)
	if !ok {
		return Record{}, false
	}
	return winner(records, m)
}

func winner(records []Record, m Metric) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best := records[0]
	bestValue := m.Value(best)
	for _, r := range records[1:] {
		v := m.Value(r)
		if (m.HigherIsBetter && v > bestValue) || (!m.HigherIsBetter && v < bestValue) {
			best, bestValue = r, v
		}
	}
	return best, true
}

// PercentageDifference returns (a-b)/b*100 for the metric, or 0 when b is
// zero or the metric is unknown.
func (c *Comparator) PercentageDifference(a, b Record, metricID string) float64 {
	m, ok := c.Metric(metricID)
	if !ok {
		return 0
	}
	va, vb := m.Value(a), m.Value(b)
	if vb == 0 {
		return 0
	}
	return (va - vb) / vb * 100
}

// Summary names the winner of every metric, one line each.
func (c *Comparator) Summary(records []Record) string {
	if len(records) < 2 {
		return summaryTooFew
	}
	var lines []string
	for _, m := range c.Metrics() {
		w, ok := winner(records, m)
		if !ok {
			continue
		}
		direction := "lowest"
		if m.HigherIsBetter {
			direction = "highest"
		}
		lines = append(lines, fmt.Sprintf("%s has the %s %s (%s)", w.Country, direction, m.Name, m.format(m.Value(w))))
	}
	return strings.Join(lines, "\n")
}

// ChartData returns one point per record for the metric, in input order.
func (c *Comparator) ChartData(records []Record, metricID string) []ChartPoint {
	m, ok := c.Metric(metricID)
	if !ok {
		return nil
	}
	out := make([]ChartPoint, len(records))
	for i, r := range records {
		v := m.Value(r)
		out[i] = ChartPoint{Country: r.Country, Value: v, Formatted: m.format(v)}
	}
	return out
}

// Similarity scores how alike two records are, from 0 to 100. Only metrics
// positive on both sides count.
func (c *Comparator) Similarity(a, b Record) float64 {
	return similarity(c.Metrics(), a, b)
}

func similarity(metrics []Metric, a, b Record) float64 {
	var total float64
	var used int
	for _, m := range metrics {
		va, vb := m.Value(a), m.Value(b)
		if va <= 0 || vb <= 0 {
			continue
		}
		total += math.Abs(va-vb) / max(va, vb)
		used++
	}
	if used == 0 {
		return 0
	}
	return max(0, 100-total/float64(used)*100)
}

// MostSimilar returns the candidate with the highest similarity to target
// and its score. The first candidate holds ties.
func (c *Comparator) MostSimilar(target Record, candidates []Record) (Record, float64, bool) {
	if len(candidates) == 0 {
		return Record{}, 0, false
	}
	metrics := c.Metrics()
	best, bestScore := Record{}, -1.0
	for _, cand := range candidates {
		if s := similarity(metrics, target, cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best, bestScore, true
}
