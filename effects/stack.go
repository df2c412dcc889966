// Package effects applies ordered, named post-processing effects.
package effects

import (
	"image"
	"sort"
	"strconv"
	"strings"

	"github.com/Skryldev/filter-engine/core"
)

// Params are an effect's parameters as supplied by the preset or override.
type Params map[string]any

// Handler transforms an image.  Handlers must be pure: they read src and
// params only and return a new image.
type Handler func(src image.Image, params Params) image.Image

// PassThrough lists effect names that appear in presets but have no defined
// algorithm.  They are deliberately left unregistered, so they behave as
// identity.
var PassThrough = []string{
	"brush_strokes",
	"neon_glow",
	"cell_shading",
	"warm_filter",
	"edge_preserve",
	"oil_paint",
}

// Stack dispatches effects to registered handlers.  The handler table is
// fixed at construction and read-only afterwards, so a Stack is safe for
// concurrent use.
type Stack struct {
	handlers map[string]Handler
}

// NewStack returns a Stack with the built-in handlers plus extra.  Entries in
// extra replace built-ins of the same name.
func NewStack(extra map[string]Handler) *Stack {
	h := Builtin()
	for name, fn := range extra {
		h[normalize(name)] = fn
	}
	return &Stack{handlers: h}
}

// Apply runs effects in slice order, each consuming the previous output.
// Unknown names leave the image unchanged.
func (s *Stack) Apply(img image.Image, effects []core.Effect) image.Image {
	out := img
	for _, e := range effects {
		h, ok := s.handlers[normalize(e.Name)]
		if !ok {
			continue
		}
		out = h(out, Params(e.Params))
	}
	return out
}

// Registered reports whether name has a handler.
func (s *Stack) Registered(name string) bool {
	_, ok := s.handlers[normalize(name)]
	return ok
}

// Names lists the registered effect names, sorted.
func (s *Stack) Names() []string {
	out := make([]string, 0, len(s.handlers))
	for n := range s.handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ── param helpers ─────────────────────────────────────────────────────────────

// Float returns params[key] as a float64, or def when missing or not numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// String returns params[key] as a string, or def.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns params[key] truncated to an int, or def.
func (p Params) Int(key string, def int) int {
	return int(p.Float(key, float64(def)))
}
