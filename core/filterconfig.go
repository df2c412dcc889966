package core

import (
	"math"

	"github.com/goccy/go-json"
)

// ── Scalar ────────────────────────────────────────────────────────────────────

// Scalar is an optional float parameter.  The zero value is unset, which means
// "inherit" during a merge and "neutral" during a transform.
type Scalar struct {
	Value float64
	Set   bool
}

// Val returns a set Scalar holding v.
func Val(v float64) Scalar { return Scalar{Value: v, Set: true} }

// Or returns the value when set, def otherwise.
func (s Scalar) Or(def float64) float64 {
	if s.Set {
		return s.Value
	}
	return def
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Set {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	var v *float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*s = Scalar{}
		return nil
	}
	*s = Val(*v)
	return nil
}

// ── Fields ────────────────────────────────────────────────────────────────────

// Field names one scalar of a FilterConfig.
type Field string

const (
	FieldBrightness Field = "brightness"
	FieldContrast   Field = "contrast"
	FieldSaturation Field = "saturation"
	FieldHue        Field = "hue"
	FieldSepia      Field = "sepia"
	FieldGrayscale  Field = "grayscale"
	FieldBlur       Field = "blur"
	FieldOpacity    Field = "opacity"
	FieldInvert     Field = "invert"
)

// Domain is the closed range a field accepts and its neutral value.
type Domain struct {
	Min, Max float64
	Neutral  float64
}

// Contains reports whether v lies inside the domain.  A domain with an
// infinite Max is open above; infinities themselves are never contained.
func (d Domain) Contains(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= d.Min && v <= d.Max
}

// MaxBlurSigma bounds the Gaussian sigma actually used for blurring.  Past
// this point the kernel only gets slower, not visibly softer.
const MaxBlurSigma = 64.0

// BlurSigma returns the sigma to use for blurring a w×h image: sigma capped
// by MaxBlurSigma and by the longer image side.  Non-finite or non-positive
// input yields 0, meaning no blur.
func BlurSigma(sigma float64, w, h int) float64 {
	if math.IsNaN(sigma) || sigma <= 0 {
		return 0
	}
	limit := math.Min(MaxBlurSigma, float64(max(w, h)))
	return math.Min(sigma, limit)
}

// Fields lists every scalar field in declaration order.
var Fields = []Field{
	FieldBrightness, FieldContrast, FieldSaturation, FieldHue, FieldSepia,
	FieldGrayscale, FieldBlur, FieldOpacity, FieldInvert,
}

var domains = map[Field]Domain{
	FieldBrightness: {Min: 0, Max: 2, Neutral: 1},
	FieldContrast:   {Min: 0, Max: 2, Neutral: 1},
	FieldSaturation: {Min: 0, Max: 2, Neutral: 1},
	FieldHue:        {Min: -180, Max: 180, Neutral: 0},
	FieldSepia:      {Min: 0, Max: 1, Neutral: 0},
	FieldGrayscale:  {Min: 0, Max: 1, Neutral: 0},
	FieldBlur:       {Min: 0, Max: math.Inf(1), Neutral: 0},
	FieldOpacity:    {Min: 0, Max: 1, Neutral: 1},
	FieldInvert:     {Min: 0, Max: 1, Neutral: 0},
}

// DomainOf returns the domain of f.
func DomainOf(f Field) Domain { return domains[f] }

// ── FilterConfig ──────────────────────────────────────────────────────────────

// Effect is a named post-processing step applied after the tone adjustments.
type Effect struct {
	Name   string         `json:"name" bson:"name"`
	Params map[string]any `json:"params,omitempty" bson:"params,omitempty"`
}

// FilterConfig is a full or partial set of filter parameters.  EffectsSet
// distinguishes "no effects" from "effects not specified", which matters when
// the config is used as an override.
type FilterConfig struct {
	Brightness Scalar
	Contrast   Scalar
	Saturation Scalar
	Hue        Scalar
	Sepia      Scalar
	Grayscale  Scalar
	Blur       Scalar
	Opacity    Scalar
	Invert     Scalar

	Effects    []Effect
	EffectsSet bool
}

// WithEffects returns c with its effect list replaced by effects.
func (c FilterConfig) WithEffects(effects ...Effect) FilterConfig {
	c.Effects = append([]Effect(nil), effects...)
	c.EffectsSet = true
	return c
}

// Scalar returns a pointer to the named field, or nil for an unknown name.
func (c *FilterConfig) Scalar(f Field) *Scalar {
	switch f {
	case FieldBrightness:
		return &c.Brightness
	case FieldContrast:
		return &c.Contrast
	case FieldSaturation:
		return &c.Saturation
	case FieldHue:
		return &c.Hue
	case FieldSepia:
		return &c.Sepia
	case FieldGrayscale:
		return &c.Grayscale
	case FieldBlur:
		return &c.Blur
	case FieldOpacity:
		return &c.Opacity
	case FieldInvert:
		return &c.Invert
	}
	return nil
}

// Resolved returns the effective value of f, substituting the neutral value
// when the field is unset.
func (c FilterConfig) Resolved(f Field) float64 {
	return c.Scalar(f).Or(domains[f].Neutral)
}

// IsNeutral reports whether f is unset or set to its neutral value.
func (c FilterConfig) IsNeutral(f Field) bool {
	s := c.Scalar(f)
	return !s.Set || s.Value == domains[f].Neutral
}

type filterConfigJSON struct {
	Brightness Scalar    `json:"brightness"`
	Contrast   Scalar    `json:"contrast"`
	Saturation Scalar    `json:"saturation"`
	Hue        Scalar    `json:"hue"`
	Sepia      Scalar    `json:"sepia"`
	Grayscale  Scalar    `json:"grayscale"`
	Blur       Scalar    `json:"blur"`
	Opacity    Scalar    `json:"opacity"`
	Invert     Scalar    `json:"invert"`
	Effects    *[]Effect `json:"effects,omitempty"`
}

func (c FilterConfig) MarshalJSON() ([]byte, error) {
	out := filterConfigJSON{
		Brightness: c.Brightness, Contrast: c.Contrast, Saturation: c.Saturation,
		Hue: c.Hue, Sepia: c.Sepia, Grayscale: c.Grayscale, Blur: c.Blur,
		Opacity: c.Opacity, Invert: c.Invert,
	}
	if c.EffectsSet {
		effects := c.Effects
		if effects == nil {
			effects = []Effect{}
		}
		out.Effects = &effects
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats absent and null fields alike: both leave the field
// unset.  An "effects" key with a list (even empty) marks the effects as set.
func (c *FilterConfig) UnmarshalJSON(b []byte) error {
	var in filterConfigJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*c = FilterConfig{
		Brightness: in.Brightness, Contrast: in.Contrast, Saturation: in.Saturation,
		Hue: in.Hue, Sepia: in.Sepia, Grayscale: in.Grayscale, Blur: in.Blur,
		Opacity: in.Opacity, Invert: in.Invert,
	}
	if in.Effects != nil {
		c.Effects = *in.Effects
		c.EffectsSet = true
	}
	return nil
}
