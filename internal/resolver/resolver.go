// Package resolver expands a root component into the deduplicated transitive
// closure of component versions it needs, following each component's declared
// preloadedDependencies edges.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
)

// MetadataSource yields a component's declared metadata by machine name.
// The cache is the usual source; a remote catalog collaborator may back it
// for components not yet cached.
type MetadataSource interface {
	Metadata(ctx context.Context, name string) (*models.ComponentMetadata, error)
}

// Closure is the resolved dependency set, keyed by (machineName, major,
// minor). Patch versions are carried along but do not affect identity.
type Closure struct {
	byKey map[string]models.ComponentVersion
}

// NewClosure returns an empty closure.
func NewClosure() *Closure {
	return &Closure{byKey: make(map[string]models.ComponentVersion)}
}

// Add inserts a version, reporting whether it was new.
func (c *Closure) Add(v models.ComponentVersion) bool {
	key := v.Key()
	if _, ok := c.byKey[key]; ok {
		return false
	}
	c.byKey[key] = v
	return true
}

// Contains reports whether the same dependency is already present.
func (c *Closure) Contains(v models.ComponentVersion) bool {
	_, ok := c.byKey[v.Key()]
	return ok
}

// Len returns the number of distinct dependencies.
func (c *Closure) Len() int {
	return len(c.byKey)
}

// Components returns the closure sorted by machine name, then version, so
// downstream output (manifests, archives) is reproducible.
func (c *Closure) Components() []models.ComponentVersion {
	out := make([]models.ComponentVersion, 0, len(c.byKey))
	for _, v := range c.byKey {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MachineName != out[j].MachineName {
			return out[i].MachineName < out[j].MachineName
		}
		if out[i].Major != out[j].Major {
			return out[i].Major < out[j].Major
		}
		return out[i].Minor < out[j].Minor
	})
	return out
}

// Names returns the distinct machine names in the closure, sorted.
func (c *Closure) Names() []string {
	seen := make(map[string]bool, len(c.byKey))
	for _, v := range c.byKey {
		seen[v.MachineName] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver walks declared dependency edges against a metadata source.
type Resolver struct {
	source MetadataSource
}

func New(source MetadataSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve computes the full dependency closure of a root component.
//
// The traversal is breadth-first over declared edges only: structural layout
// components implied by content nesting are the assembler's concern, never
// added here. A visited set keyed by identity guards against cycles; the
// ecosystem declares its graphs acyclic, but corrupted metadata must not be
// able to hang a build.
func (r *Resolver) Resolve(ctx context.Context, rootName string) (*Closure, error) {
	closure := NewClosure()
	visited := make(map[string]bool)

	root, err := r.source.Metadata(ctx, rootName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root component %q: %w", rootName, err)
	}

	queue := []*models.ComponentMetadata{root}
	closure.Add(root.ComponentVersion)
	visited[root.Key()] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range current.PreloadedDependencies {
			closure.Add(dep)
			if visited[dep.Key()] {
				continue
			}
			visited[dep.Key()] = true

			meta, err := r.source.Metadata(ctx, dep.MachineName)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dependency %s (required by %s): %w",
					dep.Key(), current.MachineName, err)
			}
			queue = append(queue, meta)
		}
	}

	return closure, nil
}

// CacheSource reads metadata from the local cache, falling back to an
// optional remote source for components the cache does not hold.
type CacheSource struct {
	Store    *cache.Store
	Fallback MetadataSource
}

func (s *CacheSource) Metadata(ctx context.Context, name string) (*models.ComponentMetadata, error) {
	entry, err := s.Store.Find(name)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.CacheNotFound {
		return s.Store.ReadMetadata(entry.MatchedFileName)
	}

	if s.Fallback != nil {
		return s.Fallback.Metadata(ctx, name)
	}
	return nil, fmt.Errorf("component %q not found in cache and no remote source configured", name)
}
