// Package offline keeps a versioned, expiring snapshot of the country
// catalog in a key-value backend so it can be served without the source.
package offline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"

	"github.com/p-n-ai/worldnet/internal/country"
)

const (
	DefaultKey      = "world_net_cache"
	DefaultVersion  = "1.0.0"
	DefaultExpiry   = 24 * time.Hour
	DefaultFreshFor = 6 * time.Hour

	encodingZstd     = "zstd"
	encodingIdentity = "identity"
)

// ErrCacheMiss means no usable snapshot is stored: it is missing, expired,
// from another version or corrupt.
var ErrCacheMiss = errors.New("offline cache miss")

// Payload is the stored snapshot.
type Payload struct {
	Countries []country.Country `json:"countries"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
}

// Metadata describes the stored snapshot. Size is the stored byte length.
type Metadata struct {
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Expiry    time.Time `json:"expiry"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Encoding  string    `json:"encoding"`
}

// Options configures a Cache. Zero values use the package defaults.
type Options struct {
	Key           string
	Version       string
	DefaultExpiry time.Duration
	FreshFor      time.Duration
	// DisableCompression stores the JSON payload as is.
	DisableCompression bool
	Now                func() time.Time
}

// Cache stores country snapshots in a Backend.
type Cache struct {
	backend Backend
	opts    Options
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mu      sync.Mutex // serializes read-modify-write in Update
}

// New creates a cache over backend.
func New(backend Backend, opts Options) (*Cache, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.DefaultExpiry <= 0 {
		opts.DefaultExpiry = DefaultExpiry
	}
	if opts.FreshFor <= 0 {
		opts.FreshFor = DefaultFreshFor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Cache{backend: backend, opts: opts, enc: enc, dec: dec}, nil
}

// Close releases the codec resources.
func (c *Cache) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

func (c *Cache) metaKey() string {
	return c.opts.Key + "_meta"
}

// CacheData stores countries for expiry. A non-positive expiry uses the
// default.
func (c *Cache) CacheData(ctx context.Context, countries []country.Country, expiry time.Duration) error {
	if expiry <= 0 {
		expiry = c.opts.DefaultExpiry
	}
	now := c.opts.Now()

	raw, err := json.Marshal(Payload{Countries: countries, Timestamp: now, Version: c.opts.Version})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	encoding := encodingZstd
	stored := c.enc.EncodeAll(raw, nil)
	if c.opts.DisableCompression {
		encoding = encodingIdentity
		stored = raw
	}

	meta := Metadata{
		Size:      len(stored),
		Timestamp: now,
		Expiry:    now.Add(expiry),
		Version:   c.opts.Version,
		Checksum:  checksum(stored),
		Encoding:  encoding,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := c.backend.Set(ctx, c.opts.Key, stored, expiry); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	if err := c.backend.Set(ctx, c.metaKey(), metaJSON, expiry); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}

	slog.Debug("offline cache written", "countries", len(countries), "bytes", len(stored), "encoding", encoding)
	return nil
}

// CachedData returns the stored snapshot or ErrCacheMiss.
func (c *Cache) CachedData(ctx context.Context) (Payload, error) {
	meta, err := c.validMetadata(ctx)
	if err != nil {
		return Payload{}, err
	}

	stored, err := c.backend.Get(ctx, c.opts.Key)
	if errors.Is(err, ErrNotFound) {
		return Payload{}, ErrCacheMiss
	}
	if err != nil {
		return Payload{}, err
	}
	if checksum(stored) != meta.Checksum {
		slog.Warn("offline cache checksum mismatch", "key", c.opts.Key)
		return Payload{}, fmt.Errorf("%w: checksum mismatch", ErrCacheMiss)
	}

	raw := stored
	if meta.Encoding == encodingZstd {
		raw, err = c.dec.DecodeAll(stored, nil)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: decompress: %v", ErrCacheMiss, err)
		}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: decode: %v", ErrCacheMiss, err)
	}
	return p, nil
}

func (c *Cache) validMetadata(ctx context.Context) (Metadata, error) {
	meta, err := c.Metadata(ctx)
	if err != nil {
		return Metadata{}, err
	}
	if c.opts.Now().After(meta.Expiry) {
		return Metadata{}, fmt.Errorf("%w: expired", ErrCacheMiss)
	}
	if meta.Version != c.opts.Version {
		return Metadata{}, fmt.Errorf("%w: version %s", ErrCacheMiss, meta.Version)
	}
	return meta, nil
}

// IsValid reports whether a fresh, current-version snapshot is stored.
func (c *Cache) IsValid(ctx context.Context) bool {
	_, err := c.CachedData(ctx)
	return err == nil
}

// Metadata returns the stored metadata or ErrCacheMiss.
func (c *Cache) Metadata(ctx context.Context) (Metadata, error) {
	b, err := c.backend.Get(ctx, c.metaKey())
	if errors.Is(err, ErrNotFound) {
		return Metadata{}, ErrCacheMiss
	}
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: metadata: %v", ErrCacheMiss, err)
	}
	return meta, nil
}

// Clear removes the snapshot and its metadata.
func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.Delete(ctx, c.opts.Key, c.metaKey())
}

// Update merges patches into the stored snapshot by code and re-caches it
// with the default expiry. Unknown codes are ignored. Without a snapshot it
// does nothing.
func (c *Cache) Update(ctx context.Context, patches []country.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.CachedData(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}

	index := make(map[string]int, len(p.Countries))
	for i, ct := range p.Countries {
		index[ct.Code] = i
	}
	for _, patch := range patches {
		if i, ok := index[patch.Code]; ok {
			p.Countries[i] = patch.Apply(p.Countries[i])
		}
	}
	return c.CacheData(ctx, p.Countries, 0)
}

// countries returns the cached list, or nil on a miss.
func (c *Cache) countries(ctx context.Context) ([]country.Country, error) {
	p, err := c.CachedData(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.Countries, nil
}

// Search returns cached countries whose name, code, capital or region
// contains query, ignoring case.
func (c *Cache) Search(ctx context.Context, query string) ([]country.Country, error) {
	all, err := c.countries(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	var out []country.Country
	for _, ct := range all {
		for _, field := range []string{ct.Name, ct.Code, ct.Capital, ct.Region} {
			if strings.Contains(fold.String(field), q) {
				out = append(out, ct)
				break
			}
		}
	}
	return out, nil
}

// CountryByCode returns one cached country.
func (c *Cache) CountryByCode(ctx context.Context, code string) (country.Country, bool, error) {
	all, err := c.countries(ctx)
	if err != nil {
		return country.Country{}, false, err
	}
	for _, ct := range all {
		if strings.EqualFold(ct.Code, code) {
			return ct, true, nil
		}
	}
	return country.Country{}, false, nil
}

// ByRegion returns the cached countries of one region.
func (c *Cache) ByRegion(ctx context.Context, region string) ([]country.Country, error) {
	all, err := c.countries(ctx)
	if err != nil {
		return nil, err
	}
	var out []country.Country
	for _, ct := range all {
		if ct.Region == region {
			out = append(out, ct)
		}
	}
	return out, nil
}

// Preload caches countries unless a valid snapshot younger than FreshFor
// already exists. It reports whether it wrote.
func (c *Cache) Preload(ctx context.Context, countries []country.Country) (bool, error) {
	if c.IsValid(ctx) {
		meta, err := c.Metadata(ctx)
		if err == nil && c.opts.Now().Sub(meta.Timestamp) < c.opts.FreshFor {
			slog.Info("offline cache is recent, skipping preload", "age", c.opts.Now().Sub(meta.Timestamp).Round(time.Second))
			return false, nil
		}
	}

	if err := c.CacheData(ctx, countries, 0); err != nil {
		return false, err
	}
	slog.Info("offline cache preloaded", "countries", len(countries))
	return true, nil
}

// Size renders the stored snapshot size, e.g. "0 B", "512 B", "1.5 KB".
func (c *Cache) Size(ctx context.Context) string {
	meta, err := c.Metadata(ctx)
	if err != nil {
		return formatSize(0)
	}
	return formatSize(meta.Size)
}

func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func checksum(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
