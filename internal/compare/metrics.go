// Package compare ranks countries against each other over a set of
// numeric metrics.
package compare

import (
	"errors"
	"fmt"
	"math"

	"github.com/p-n-ai/worldnet/internal/country"
)

var (
	ErrDuplicateMetric = errors.New("metric already registered")
	ErrInvalidMetric   = errors.New("metric needs an id and a value function")
)

// Record is the comparable view of a country.
type Record struct {
	Country    string  `json:"country"`
	Code       string  `json:"code"`
	Population float64 `json:"population"`
	GDP        float64 `json:"gdp"`
	Area       float64 `json:"area"`
	Density    float64 `json:"density"`
	GrowthRate float64 `json:"growth_rate"`
}

// FromCountry builds a Record, deriving density from population and area.
func FromCountry(c country.Country) Record {
	r := Record{
		Country:    c.Name,
		Code:       c.Code,
		Population: float64(c.Population),
		GDP:        c.GDP,
		Area:       c.Area,
		GrowthRate: c.GrowthRate,
	}
	if c.Area > 0 {
		r.Density = r.Population / c.Area
	}
	return r
}

// FromCountries converts a slice of countries.
func FromCountries(cs []country.Country) []Record {
	out := make([]Record, len(cs))
	for i, c := range cs {
		out[i] = FromCountry(c)
	}
	return out
}

// Metric is one comparison dimension.
type Metric struct {
	ID             string
	Name           string
	Unit           string
	Value          func(Record) float64
	Format         func(float64) string
	HigherIsBetter bool
}

// MetricInfo is the serializable description of a Metric.
type MetricInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	HigherIsBetter bool   `json:"higher_is_better"`
}

func (m Metric) info() MetricInfo {
	return MetricInfo{ID: m.ID, Name: m.Name, Unit: m.Unit, HigherIsBetter: m.HigherIsBetter}
}

func (m Metric) format(v float64) string {
	if m.Format == nil {
		return formatCompact(v)
	}
	return m.Format(v)
}

// DefaultMetrics returns the six built-in metrics.
func DefaultMetrics() []Metric {
	return []Metric{
		{
			ID:     "population",
			Name:   "Population",
			Unit:   "people",
			Value:  func(r Record) float64 { return r.Population },
			Format: formatCompact,
		},
		{
			ID:             "gdp",
			Name:           "GDP",
			Unit:           "USD",
			Value:          func(r Record) float64 { return r.GDP },
			Format:         func(v float64) string { return "$" + formatCompact(v) },
			HigherIsBetter: true,
		},
		{
			ID:   "gdp_per_capita",
			Name: "GDP per Capita",
			Unit: "USD",
			Value: func(r Record) float64 {
				if r.Population <= 0 {
					return 0
				}
				return r.GDP / r.Population
			},
			Format:         func(v float64) string { return "$" + formatCompact(math.Round(v)) },
			HigherIsBetter: true,
		},
		{
			ID:     "area",
			Name:   "Land Area",
			Unit:   "km²",
			Value:  func(r Record) float64 { return r.Area },
			Format: func(v float64) string { return formatCompact(v) + " km²" },
		},
		{
			ID:     "density",
			Name:   "Population Density",
			Unit:   "people/km²",
			Value:  func(r Record) float64 { return r.Density },
			Format: func(v float64) string { return formatCompact(math.Round(v)) + "/km²" },
		},
		{
			ID:             "growth_rate",
			Name:           "Growth Rate",
			Unit:           "%",
			Value:          func(r Record) float64 { return r.GrowthRate },
			Format:         func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
			HigherIsBetter: true,
		},
	}
}

// formatCompact renders n with a K, M or B suffix and one decimal.
func formatCompact(n float64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.1fB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", n/1e3)
	default:
		return fmt.Sprintf("%d", int64(math.Round(n)))
	}
}
