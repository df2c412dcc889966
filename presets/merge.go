package presets

import (
	"fmt"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Merge layers override on top of base.  Each scalar set in override replaces
// the base value; unset scalars keep the base value.  The effect list is not
// merged per effect: if override specifies effects at all, even an empty
// list, it replaces base's list wholesale.
func Merge(base core.FilterConfig, override *core.FilterConfig) core.FilterConfig {
	out := cloneConfig(base)
	if override == nil {
		return out
	}
	for _, f := range core.Fields {
		if s := *override.Scalar(f); s.Set {
			*out.Scalar(f) = s
		}
	}
	if override.EffectsSet {
		ov := cloneConfig(core.FilterConfig{Effects: override.Effects})
		out.Effects = ov.Effects
		if out.Effects == nil {
			out.Effects = []core.Effect{}
		}
		out.EffectsSet = true
	}
	return out
}

// Validate checks every set scalar against its domain and that effects are
// named.  Violations are InvalidInput errors.
func Validate(cfg core.FilterConfig) error {
	for _, f := range core.Fields {
		s := cfg.Scalar(f)
		if !s.Set {
			continue
		}
		if d := core.DomainOf(f); !d.Contains(s.Value) {
			return apperrors.InvalidInput("config.validate",
				fmt.Errorf("%w: %s=%v not in [%v,%v]", apperrors.ErrOutOfDomain, f, s.Value, d.Min, d.Max))
		}
	}
	for i, e := range cfg.Effects {
		if e.Name == "" {
			return apperrors.InvalidInput("config.validate", fmt.Errorf("effect %d has no name", i))
		}
	}
	return nil
}
