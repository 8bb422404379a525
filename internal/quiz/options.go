package quiz

import "github.com/p-n-ai/worldnet/internal/country"

// options returns the correct answer plus up to three distinct distractors
// drawn without replacement from pool, in random order.
// Must be called with e.mu held.
func (e *Engine) options(correct string, pool []string) []string {
	seen := map[string]bool{correct: true}
	available := make([]string, 0, len(pool))
	for _, p := range pool {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		available = append(available, p)
	}
	return e.draw(correct, available)
}

// countryOptions draws other country names, excluding c by code.
// Must be called with e.mu held.
func (e *Engine) countryOptions(c country.Country, all []country.Country) []string {
	seen := map[string]bool{c.Name: true}
	available := make([]string, 0, len(all))
	for _, o := range all {
		if o.Code == c.Code || seen[o.Name] {
			continue
		}
		seen[o.Name] = true
		available = append(available, o.Name)
	}
	return e.draw(c.Name, available)
}

func (e *Engine) draw(correct string, available []string) []string {
	opts := make([]string, 0, optionCount)
	opts = append(opts, correct)
	for len(opts) < optionCount && len(available) > 0 {
		i := e.rnd.IntN(len(available))
		opts = append(opts, available[i])
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
	e.shuffle(opts)
	return opts
}

// shuffle is an in-place Fisher-Yates shuffle.
func (e *Engine) shuffle(s []string) {
	for i := len(s) - 1; i > 0; i-- {
		j := e.rnd.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
