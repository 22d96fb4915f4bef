package miniotstconfig

import (
	"sync"

	"github.com/mensylisir/miniotst/pkg/logger"
)

// Resolver implements the three-layer lookup: process environment,
// project manifest, built-in defaults. It is safe for concurrent use;
// manifest discovery runs at most once, on first Resolve call.
type Resolver struct {
	startDir string
	log      *logger.Logger

	once     sync.Once
	manifest *manifest
	hasMf    bool
}

// NewResolver builds a Resolver whose manifest discovery starts at
// startDir (typically the process's working directory).
func NewResolver(startDir string) *Resolver {
	return &Resolver{startDir: startDir, log: logger.Get().With("component", "config")}
}

func (r *Resolver) loadManifestOnce() {
	r.once.Do(func() {
		mf, ok := discoverManifest(r.startDir)
		r.manifest, r.hasMf = mf, ok
		if ok {
			r.log.Debugf("discovered project manifest in %s", mf.dir)
		}
	})
}

// Resolve returns the value for key following env -> manifest ->
// defaults, or "" if none of the three layers supplies one.
func (r *Resolver) Resolve(key Key) string {
	if v, ok := lookupEnv(key); ok {
		return v
	}
	r.loadManifestOnce()
	if r.hasMf {
		if v, ok := r.manifest.lookup(key); ok {
			return v
		}
	}
	return defaultValues[key]
}

// Bool resolves key and parses it with the resolver's relaxed truthy
// rules.
func (r *Resolver) Bool(key Key) bool {
	return parseBool(r.Resolve(key))
}

// Int resolves key and parses it as an integer, returning fallback if
// unset or malformed.
func (r *Resolver) Int(key Key, fallback int) int {
	return parseIntOr(r.Resolve(key), fallback)
}

// Debug reports whether the DEBUG key (MINIOTST_DEBUG in the
// environment) resolves to a truthy value; it is shorthand for
// Bool(Debug).
func (r *Resolver) Debug() bool {
	return r.Bool(Debug)
}
