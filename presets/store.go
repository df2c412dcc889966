package presets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// ── MemoryStore ───────────────────────────────────────────────────────────────

// MemoryStore is an in-process core.PresetStore for custom presets.  Writes
// belong to the caller's CRUD layer; Put exists so that layer (and tests) can
// seed it.
type MemoryStore struct {
	mu      sync.RWMutex
	presets map[string]core.FilterPreset
}

// NewMemoryStore returns a store holding presets.
func NewMemoryStore(presets ...core.FilterPreset) *MemoryStore {
	s := &MemoryStore{presets: make(map[string]core.FilterPreset)}
	for _, p := range presets {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a custom preset.
func (s *MemoryStore) Put(p core.FilterPreset) {
	p.IsCustom = true
	s.mu.Lock()
	s.presets[strings.ToLower(p.ID)] = clonePreset(p)
	s.mu.Unlock()
}

func (s *MemoryStore) LookupPreset(_ context.Context, id string) (*core.FilterPreset, error) {
	s.mu.RLock()
	p, ok := s.presets[strings.ToLower(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("presets.lookup", fmt.Errorf("%w: %s", apperrors.ErrUnknownPreset, id))
	}
	cp := clonePreset(p)
	return &cp, nil
}

func (s *MemoryStore) LookupPresetsByCategory(_ context.Context, c core.Category) ([]core.FilterPreset, error) {
	return s.filter(func(p core.FilterPreset) bool { return p.Category == c }), nil
}

func (s *MemoryStore) LookupPresetsByType(_ context.Context, typ string) ([]core.FilterPreset, error) {
	return s.filter(func(p core.FilterPreset) bool { return strings.EqualFold(p.Type, typ) }), nil
}

func (s *MemoryStore) filter(keep func(core.FilterPreset) bool) []core.FilterPreset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FilterPreset
	for _, p := range s.presets {
		if keep(p) {
			out = append(out, clonePreset(p))
		}
	}
	return out
}

// ── Resolver ──────────────────────────────────────────────────────────────────

// Resolver looks presets up in the built-in table first and then in the
// custom store.
type Resolver struct {
	builtin *Table
	custom  core.PresetStore
}

// NewResolver combines a built-in table with an optional custom store.
func NewResolver(builtin *Table, custom core.PresetStore) *Resolver {
	if builtin == nil {
		builtin = NewTable()
	}
	return &Resolver{builtin: builtin, custom: custom}
}

// Builtin returns the built-in table.
func (r *Resolver) Builtin() *Table { return r.builtin }

// Lookup resolves id.  An unknown id yields a not_found error wrapping
// ErrUnknownPreset.
func (r *Resolver) Lookup(ctx context.Context, id string) (*core.FilterPreset, error) {
	if p, ok := r.builtin.Lookup(id); ok {
		return &p, nil
	}
	if r.custom != nil {
		p, err := r.custom.LookupPreset(ctx, id)
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil && !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "presets.lookup", err)
		}
	}
	return nil, apperrors.NotFound("presets.lookup", fmt.Errorf("%w: %s", apperrors.ErrUnknownPreset, id))
}

// ByCategory returns built-in presets of category c followed by custom ones.
func (r *Resolver) ByCategory(ctx context.Context, c core.Category) ([]core.FilterPreset, error) {
	out := r.builtin.ByCategory(c)
	if r.custom == nil {
		return out, nil
	}
	custom, err := r.custom.LookupPresetsByCategory(ctx, c)
	if err != nil {
		return out, apperrors.Wrap(apperrors.CategoryStorage, "presets.by_category", err)
	}
	return append(out, custom...), nil
}

// ByType returns built-in presets of type typ followed by custom ones.
func (r *Resolver) ByType(ctx context.Context, typ string) ([]core.FilterPreset, error) {
	out := r.builtin.ByType(typ)
	if r.custom == nil {
		return out, nil
	}
	custom, err := r.custom.LookupPresetsByType(ctx, typ)
	if err != nil {
		return out, apperrors.Wrap(apperrors.CategoryStorage, "presets.by_type", err)
	}
	return append(out, custom...), nil
}
