// Package country holds the country catalog shared by the quiz and comparison engines.
package country

// Country is a single catalog entry. Records are read-only once loaded.
type Country struct {
	Name       string  `json:"name" yaml:"name"`
	Code       string  `json:"code" yaml:"code"`
	Capital    string  `json:"capital" yaml:"capital"`
	Population int64   `json:"population" yaml:"population"`
	Region     string  `json:"region" yaml:"region"`
	Currency   string  `json:"currency,omitempty" yaml:"currency"`
	Flag       string  `json:"flag,omitempty" yaml:"flag"`
	GDP        float64 `json:"gdp,omitempty" yaml:"gdp"`
	Area       float64 `json:"area,omitempty" yaml:"area"`
	GrowthRate float64 `json:"growth_rate,omitempty" yaml:"growth_rate"`
	Landmark   string  `json:"landmark,omitempty" yaml:"landmark"`
}

// Patch is a partial update to a Country, matched by Code.
// Nil fields are left unchanged.
type Patch struct {
	Code       string   `json:"code"`
	Name       *string  `json:"name,omitempty"`
	Capital    *string  `json:"capital,omitempty"`
	Population *int64   `json:"population,omitempty"`
	Region     *string  `json:"region,omitempty"`
	Currency   *string  `json:"currency,omitempty"`
	Flag       *string  `json:"flag,omitempty"`
	GDP        *float64 `json:"gdp,omitempty"`
	Area       *float64 `json:"area,omitempty"`
	GrowthRate *float64 `json:"growth_rate,omitempty"`
	Landmark   *string  `json:"landmark,omitempty"`
}

// Apply returns c with the non-nil fields of p applied.
func (p Patch) Apply(c Country) Country {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Capital != nil {
		c.Capital = *p.Capital
	}
	if p.Population != nil {
		c.Population = *p.Population
	}
	if p.Region != nil {
		c.Region = *p.Region
	}
	if p.Currency != nil {
		c.Currency = *p.Currency
	}
	if p.Flag != nil {
		c.Flag = *p.Flag
	}
	if p.GDP != nil {
		c.GDP = *p.GDP
	}
	if p.Area != nil {
		c.Area = *p.Area
	}
	if p.GrowthRate != nil {
		c.GrowthRate = *p.GrowthRate
	}
	if p.Landmark != nil {
		c.Landmark = *p.Landmark
	}
	return c
}

// Dataset is the on-disk shape of a catalog file.
type Dataset struct {
	Countries []Country `json:"countries" yaml:"countries"`
}
