package target

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// Spec describes one endpoint to probe. URL is the identity of the target
// for the lifetime of a run; Interval is the time between request starts.
// Pattern, when non-nil, is matched against the response body.
// A Spec is immutable once it enters a Registry.
type Spec struct {
	URL      string
	Interval time.Duration
	Pattern  *regexp.Regexp
}

// Validate enforces the invariants the scheduler relies on so that no
// ticker is ever created for a malformed target.
func (s Spec) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("target requires a url")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("target %s: invalid url: %w", s.URL, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("target %s: url must be absolute", s.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target %s: unsupported scheme %q", s.URL, u.Scheme)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("target %s: interval must be > 0", s.URL)
	}
	return nil
}

// Registry is the validated, immutable set of targets for a run.
// Construct it once via NewRegistry before the scheduler starts; it is
// read-only afterwards.
type Registry struct {
	specs []Spec
	byURL map[string]int
}

// NewRegistry validates every spec and rejects duplicate URLs.
// Order is preserved.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, 0, len(specs)),
		byURL: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byURL[s.URL]; dup {
			return nil, fmt.Errorf("duplicate target url %s", s.URL)
		}
		r.byURL[s.URL] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

// Specs returns a copy of the target list.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Get returns the spec for a url.
func (r *Registry) Get(url string) (Spec, bool) {
	i, ok := r.byURL[url]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Len returns the number of targets.
func (r *Registry) Len() int { return len(r.specs) }
