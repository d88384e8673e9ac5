// Package pkgmgr is the endpoint registry. Endpoints register a manifest
// keyed by type and identifier; operations load the endpoints their
// settings name.
package pkgmgr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/settings"
)

// identifierPattern matches "<package>.<endpoint>" identifiers.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

type key struct {
	typ endpoint.Type
	id  string
}

// Registry maps (type, identifier) to a manifest.
type Registry struct {
	mu        sync.RWMutex
	manifests map[key]endpoint.Manifest
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{manifests: make(map[key]endpoint.Manifest)}
}

// Register adds a manifest.
func (r *Registry) Register(m endpoint.Manifest) error {
	if !identifierPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidPackageIdentifier, m.ID)
	}
	if m.New == nil {
		return fmt.Errorf("endpoint %s has no constructor", m.ID)
	}
	known := false
	for _, t := range endpoint.Types {
		known = known || t == m.Type
	}
	if !known {
		return fmt.Errorf("endpoint %s: unknown type %q", m.ID, m.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{m.Type, m.ID}
	if _, dup := r.manifests[k]; dup {
		return fmt.Errorf("endpoint %s already registered as %s", m.ID, m.Type)
	}
	r.manifests[k] = m
	return nil
}

// MustRegister registers manifests and panics on error. For init-time
// registration of built-in endpoints.
func (r *Registry) MustRegister(ms ...endpoint.Manifest) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the manifest of (t, id).
func (r *Registry) Lookup(t endpoint.Type, id string) (endpoint.Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[key{t, id}]
	return m, ok
}

// Discover returns the identifiers registered for t, sorted.
func (r *Registry) Discover(t endpoint.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for k := range r.manifests {
		if k.typ == t {
			ids = append(ids, k.id)
		}
	}
	sort.Strings(ids)
	return ids
}

// declaredTypes returns every type id is registered under.
func (r *Registry) declaredTypes(id string) []endpoint.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []endpoint.Type
	for k := range r.manifests {
		if k.id == id {
			types = append(types, k.typ)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// LoadOptions controls Load.
type LoadOptions struct {
	// IgnoreNotAvailable skips unregistered endpoints instead of failing.
	IgnoreNotAvailable bool
}

// Loaded is an instantiated endpoint.
type Loaded struct {
	Manifest endpoint.Manifest
	Endpoint endpoint.Endpoint
}

// Load instantiates the endpoints of type t named by entries, in order.
func (r *Registry) Load(env *endpoint.Env, t endpoint.Type, entries []settings.EndpointSettings, opts LoadOptions) ([]Loaded, error) {
	loaded := make([]Loaded, 0, len(entries))
	for _, entry := range entries {
		l, err := r.instantiate(env, t, entry)
		if err != nil {
			if opts.IgnoreNotAvailable && errorsIsMissing(err) {
				if env != nil && env.Logger != nil {
					env.Logger.Warn("skipping unavailable endpoint", "type", t, "endpoint", entry.Endpoint())
				}
				continue
			}
			return nil, err
		}
		loaded = append(loaded, l)
	}
	return loaded, nil
}

func (r *Registry) instantiate(env *endpoint.Env, t endpoint.Type, entry settings.EndpointSettings) (Loaded, error) {
	id := entry.Endpoint()
	if !identifierPattern.MatchString(id) {
		return Loaded{}, fmt.Errorf("%w: %q", ErrInvalidPackageIdentifier, id)
	}
	m, ok := r.Lookup(t, id)
	if !ok {
		if declared := r.declaredTypes(id); len(declared) > 0 {
			return Loaded{}, &IncompatibleEndpointError{ID: id, Declared: declared, Requested: t}
		}
		return Loaded{}, &MissingDependencyError{Type: t, ID: id}
	}

	var cfg any
	if m.Settings != nil {
		cfg = m.Settings()
		if err := decodeSettings(entry, cfg); err != nil {
			return Loaded{}, &InvalidSettingsError{ID: id, Err: err}
		}
	}

	e, err := m.New(env, cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("constructing %s: %w", id, err)
	}
	if !endpoint.Implements(t, e) {
		return Loaded{}, &IncompatibleEndpointError{ID: id, Declared: []endpoint.Type{m.Type}, Requested: t}
	}
	return Loaded{Manifest: m, Endpoint: e}, nil
}

// decodeSettings decodes entry, minus its identifier, into cfg, rejecting
// unknown keys, and validates the result.
func decodeSettings(entry settings.EndpointSettings, cfg any) error {
	rest := make(map[string]any, len(entry))
	for k, v := range entry {
		if k != "endpoint" {
			rest[k] = v
		}
	}
	data, err := json.Marshal(rest)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if err := settings.Validator().Struct(cfg); err != nil {
		return fmt.Errorf("%s", settings.DescribeValidation(err))
	}
	return nil
}

func errorsIsMissing(err error) bool {
	var missing *MissingDependencyError
	return errors.As(err, &missing)
}

// LoadSearchSources instantiates one search source per configured source.
func (r *Registry) LoadSearchSources(env *endpoint.Env, sources []settings.SearchSource, opts LoadOptions) ([]endpoint.SearchSource, error) {
	entries := make([]settings.EndpointSettings, 0, len(sources))
	for _, src := range sources {
		data, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		var entry settings.EndpointSettings
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	loaded, err := r.Load(env, endpoint.TypeSearchSource, entries, opts)
	if err != nil {
		return nil, err
	}
	out := make([]endpoint.SearchSource, len(loaded))
	for i, l := range loaded {
		out[i] = l.Endpoint.(endpoint.SearchSource)
	}
	return out, nil
}

// HeuristicResult scores one search source for a file.
type HeuristicResult struct {
	Endpoint   string  `json:"endpoint"`
	Confidence float64 `json:"confidence"`
}

// Heuristic scores every search source with a heuristic for a new search
// file, best first.
func (r *Registry) Heuristic(filename string, data []byte) []HeuristicResult {
	var results []HeuristicResult
	for _, id := range r.Discover(endpoint.TypeSearchSource) {
		m, _ := r.Lookup(endpoint.TypeSearchSource, id)
		if m.Heuristic == nil {
			continue
		}
		if c := m.Heuristic(filename, data); c > 0 {
			results = append(results, HeuristicResult{Endpoint: id, Confidence: c})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Endpoint < results[j].Endpoint
	})
	return results
}

// ReviewType instantiates the review type named id.
func (r *Registry) ReviewType(env *endpoint.Env, id string) (endpoint.ReviewType, error) {
	l, err := r.instantiate(env, endpoint.TypeReviewType, settings.EndpointSettings{"endpoint": id})
	if err != nil {
		if errorsIsMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReviewType, id)
		}
		return nil, err
	}
	return l.Endpoint.(endpoint.ReviewType), nil
}

// RenderingHeavy reports whether any loaded endpoint is rendering heavy.
func RenderingHeavy(loaded []Loaded) bool {
	for _, l := range loaded {
		if l.Manifest.RenderingHeavy {
			return true
		}
	}
	return false
}
