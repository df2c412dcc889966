// Package presets holds the built-in preset table, the custom-preset store and
// the config merge rule.
package presets

import (
	"sort"
	"strings"

	"github.com/Skryldev/filter-engine/core"
)

// Table is an immutable set of presets keyed by id.  Lookups return copies,
// so callers cannot modify the table.
type Table struct {
	byID  map[string]core.FilterPreset
	order []string
}

// NewTable builds a Table from presets.  Later entries with a duplicate id
// replace earlier ones.
func NewTable(presets ...core.FilterPreset) *Table {
	t := &Table{byID: make(map[string]core.FilterPreset, len(presets))}
	for _, p := range presets {
		id := strings.ToLower(p.ID)
		if _, dup := t.byID[id]; !dup {
			t.order = append(t.order, id)
		}
		p.IsCustom = false
		p.Owner = ""
		t.byID[id] = p
	}
	return t
}

// Lookup returns the preset with id (case-insensitive).
func (t *Table) Lookup(id string) (core.FilterPreset, bool) {
	p, ok := t.byID[strings.ToLower(id)]
	if !ok {
		return core.FilterPreset{}, false
	}
	return clonePreset(p), true
}

// All returns every preset in insertion order.
func (t *Table) All() []core.FilterPreset {
	out := make([]core.FilterPreset, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, clonePreset(t.byID[id]))
	}
	return out
}

// ByCategory returns the presets in category c, in insertion order.
func (t *Table) ByCategory(c core.Category) []core.FilterPreset {
	var out []core.FilterPreset
	for _, id := range t.order {
		if p := t.byID[id]; p.Category == c {
			out = append(out, clonePreset(p))
		}
	}
	return out
}

// ByType returns the presets whose type is typ.
func (t *Table) ByType(typ string) []core.FilterPreset {
	var out []core.FilterPreset
	for _, id := range t.order {
		if p := t.byID[id]; strings.EqualFold(p.Type, typ) {
			out = append(out, clonePreset(p))
		}
	}
	return out
}

// Types returns the distinct types in category c, sorted.
func (t *Table) Types(c core.Category) []string {
	seen := map[string]bool{}
	for _, p := range t.byID {
		if p.Category == c {
			seen[p.Type] = true
		}
	}
	out := make([]string, 0, len(seen))
	for typ := range seen {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func clonePreset(p core.FilterPreset) core.FilterPreset {
	p.Config = cloneConfig(p.Config)
	return p
}

func cloneConfig(c core.FilterConfig) core.FilterConfig {
	if c.Effects != nil {
		effects := make([]core.Effect, len(c.Effects))
		for i, e := range c.Effects {
			effects[i] = core.Effect{Name: e.Name}
			if e.Params != nil {
				effects[i].Params = make(map[string]any, len(e.Params))
				for k, v := range e.Params {
					effects[i].Params[k] = v
				}
			}
		}
		c.Effects = effects
	}
	return c
}

// ── Built-in catalogue ────────────────────────────────────────────────────────

func fx(name string, kv ...any) core.Effect {
	e := core.Effect{Name: name}
	if len(kv) > 0 {
		e.Params = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Params[kv[i].(string)] = kv[i+1]
		}
	}
	return e
}

// Builtin returns a new Table holding the seed presets.
func Builtin() *Table {
	v := core.Val
	return NewTable(
		// artistic
		core.FilterPreset{ID: "watercolor", Name: "Watercolor", Category: core.CategoryArtistic, Type: "watercolor",
			Description: "Soft washes of colour with bleeding edges",
			Config: core.FilterConfig{Saturation: v(1.2), Contrast: v(0.9), Blur: v(0.8)}.
				WithEffects(fx("edge_preserve"), fx("brush_strokes", "size", 3))},
		core.FilterPreset{ID: "oil_painting", Name: "Oil Painting", Category: core.CategoryArtistic, Type: "oil_painting",
			Description: "Rich, textured strokes",
			Config:      core.FilterConfig{Saturation: v(1.3), Contrast: v(1.1)}.WithEffects(fx("oil_paint", "radius", 4), fx("sharpen", "amount", 0.8))},
		core.FilterPreset{ID: "sketch", Name: "Pencil Sketch", Category: core.CategoryArtistic, Type: "sketch",
			Description: "Monochrome line drawing",
			Config:      core.FilterConfig{Grayscale: v(1), Contrast: v(1.6), Brightness: v(1.1)}.WithEffects(fx("sharpen", "amount", 1.5))},
		core.FilterPreset{ID: "pop_art", Name: "Pop Art", Category: core.CategoryArtistic, Type: "pop_art",
			Description: "Flat, saturated comic colours",
			Config:      core.FilterConfig{Saturation: v(1.9), Contrast: v(1.4)}.WithEffects(fx("cell_shading", "levels", 4))},
		core.FilterPreset{ID: "neon", Name: "Neon Nights", Category: core.CategoryArtistic, Type: "cyberpunk",
			Description: "Glowing magenta and cyan",
			Config:      core.FilterConfig{Hue: v(-30), Saturation: v(1.6), Contrast: v(1.3)}.WithEffects(fx("neon_glow"), fx("tint", "color", "#ff00cc", "strength", 0.15))},

		// mood
		core.FilterPreset{ID: "dramatic", Name: "Dramatic", Category: core.CategoryMood, Type: "dramatic",
			Description: "Deep shadows and punchy contrast",
			Config:      core.FilterConfig{Brightness: v(0.9), Contrast: v(1.5), Saturation: v(0.8)}.WithEffects(fx("vignette", "intensity", 0.6))},
		core.FilterPreset{ID: "cozy", Name: "Cozy", Category: core.CategoryMood, Type: "cozy",
			Description: "Warm, soft and inviting", Color: "#e8a867",
			Config: core.FilterConfig{Brightness: v(1.05), Saturation: v(0.9), Sepia: v(0.25)}.
				WithEffects(fx("warm_filter"), fx("fade", "amount", 0.15), fx("vignette", "intensity", 0.3))},
		core.FilterPreset{ID: "serene", Name: "Serene", Category: core.CategoryMood, Type: "serene",
			Description: "Calm, airy pastels", Color: "#a7c7e7",
			Config: core.FilterConfig{Brightness: v(1.1), Contrast: v(0.85), Saturation: v(0.75)}.
				WithEffects(fx("tint", "color", "#a7c7e7", "strength", 0.1))},
		core.FilterPreset{ID: "energetic", Name: "Energetic", Category: core.CategoryMood, Type: "energetic",
			Description: "Bright and vivid",
			Config:      core.FilterConfig{Brightness: v(1.1), Contrast: v(1.2), Saturation: v(1.4)}},
		core.FilterPreset{ID: "melancholy", Name: "Melancholy", Category: core.CategoryMood, Type: "melancholic",
			Description: "Muted, cool and heavy", Color: "#5b6b7a",
			Config: core.FilterConfig{Brightness: v(0.9), Saturation: v(0.5)}.
				WithEffects(fx("tint", "color", "#3a4f66", "strength", 0.2), fx("grain", "amount", 0.05))},

		// color
		core.FilterPreset{ID: "vintage", Name: "Vintage", Category: core.CategoryColor, Type: "vintage",
			Description: "Faded film with warm cast", Color: "#c8a165",
			Config: core.FilterConfig{Sepia: v(0.5), Contrast: v(0.9), Saturation: v(0.8)}.
				WithEffects(fx("fade", "amount", 0.3), fx("grain", "amount", 0.08), fx("vignette", "intensity", 0.4))},
		core.FilterPreset{ID: "warm", Name: "Warm", Category: core.CategoryColor, Type: "warm",
			Description: "Golden-hour warmth", Color: "#ff9900",
			Config:      core.FilterConfig{Saturation: v(1.1)}.WithEffects(fx("tint", "color", "#ff9900", "strength", 0.12))},
		core.FilterPreset{ID: "cool", Name: "Cool", Category: core.CategoryColor, Type: "cool",
			Description: "Crisp blue tones", Color: "#3399ff",
			Config:      core.FilterConfig{Saturation: v(0.95)}.WithEffects(fx("tint", "color", "#3399ff", "strength", 0.12))},
		core.FilterPreset{ID: "noir", Name: "Noir", Category: core.CategoryColor, Type: "monochrome",
			Description: "High-contrast black and white", Color: "#000000",
			Config:      core.FilterConfig{Grayscale: v(1), Contrast: v(1.4)}.WithEffects(fx("vignette", "intensity", 0.5), fx("grain", "amount", 0.06))},
		core.FilterPreset{ID: "vibrant", Name: "Vibrant", Category: core.CategoryColor, Type: "vibrant",
			Description: "Boosted colour", Color: "#ff3366",
			Config:      core.FilterConfig{Saturation: v(1.5), Contrast: v(1.1)}},

		// technical
		core.FilterPreset{ID: "sharpen", Name: "Sharpen", Category: core.CategoryTechnical, Type: "sharpen",
			Description: "Unsharp mask",
			Config:      core.FilterConfig{}.WithEffects(fx("sharpen", "amount", 1.2))},
		core.FilterPreset{ID: "soft_focus", Name: "Soft Focus", Category: core.CategoryTechnical, Type: "blur",
			Description: "Gentle Gaussian blur",
			Config:      core.FilterConfig{Blur: v(1.5), Brightness: v(1.05)}},
		core.FilterPreset{ID: "invert", Name: "Invert", Category: core.CategoryTechnical, Type: "invert",
			Description: "Photographic negative",
			Config:      core.FilterConfig{Invert: v(1)}},
		core.FilterPreset{ID: "fade_out", Name: "Fade Out", Category: core.CategoryTechnical, Type: "opacity",
			Description: "Half transparency",
			Config:      core.FilterConfig{Opacity: v(0.5)}},
	)
}
