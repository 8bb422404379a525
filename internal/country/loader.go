package country

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source supplies the current list of countries.
type Source interface {
	Countries(ctx context.Context) ([]Country, error)
}

// Loader loads and caches the country catalog from the filesystem.
type Loader struct {
	rootDir   string
	countries map[string]Country
	mu        sync.RWMutex
}

// NewLoader creates a loader and reads every catalog file under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:   rootDir,
		countries: make(map[string]Country),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading country catalog: %w", err)
	}

	slog.Info("country catalog loaded", "countries", len(l.countries), "path", rootDir)
	return l, nil
}

// Get returns a country by ISO code (case-insensitive).
func (l *Loader) Get(code string) (Country, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.countries[strings.ToUpper(code)]
	return c, ok
}

// All returns every loaded country sorted by name.
func (l *Loader) All() []Country {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Country, 0, len(l.countries))
	for _, c := range l.countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByRegion returns the countries of one region sorted by name.
func (l *Loader) ByRegion(region string) []Country {
	var out []Country
	for _, c := range l.All() {
		if c.Region == region {
			out = append(out, c)
		}
	}
	return out
}

// Countries implements Source.
func (l *Loader) Countries(_ context.Context) ([]Country, error) {
	return l.All(), nil
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); err != nil {
		return err
	}
	return filepath.WalkDir(l.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			return l.loadFile(path)
		}
		return nil
	})
}

func (l *Loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var ds Dataset
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &ds)
	} else {
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		slog.Warn("skipping unreadable catalog file", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range ds.Countries {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if err := Validate(c); err != nil {
			slog.Warn("skipping invalid country", "path", path, "error", err)
			continue
		}
		l.countries[c.Code] = c
	}
	return nil
}
