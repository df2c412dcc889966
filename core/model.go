package core

import "time"

// ── Presets ───────────────────────────────────────────────────────────────────

// Category groups presets by intent.
type Category string

const (
	CategoryArtistic  Category = "artistic"
	CategoryMood      Category = "mood"
	CategoryColor     Category = "color"
	CategoryTechnical Category = "technical"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryArtistic, CategoryMood, CategoryColor, CategoryTechnical:
		return true
	}
	return false
}

// FilterPreset is a named, reusable FilterConfig.  Owner is only meaningful
// for custom presets.
type FilterPreset struct {
	ID          string       `json:"id" bson:"_id"`
	Name        string       `json:"name" bson:"name"`
	Category    Category     `json:"category" bson:"category"`
	Type        string       `json:"type" bson:"type"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Config      FilterConfig `json:"config" bson:"config"`
	// Color is the dominant colour the preset pushes an image toward, as a
	// hex string.  Empty for presets without a colour signature.
	Color    string `json:"color,omitempty" bson:"color,omitempty"`
	IsCustom bool   `json:"isCustom" bson:"isCustom"`
	Owner    string `json:"owner,omitempty" bson:"owner,omitempty"`
}

// ── Usage ─────────────────────────────────────────────────────────────────────

// FilterApplication is one append-only ledger entry.
type FilterApplication struct {
	ID        string        `json:"id" bson:"_id"`
	MediaID   string        `json:"mediaId" bson:"mediaId"`
	UserID    string        `json:"userId" bson:"userId"`
	FilterID  string        `json:"filterId" bson:"filterId"`
	Override  *FilterConfig `json:"overrideConfig,omitempty" bson:"overrideConfig,omitempty"`
	AppliedAt time.Time     `json:"appliedAt" bson:"appliedAt"`
}

// FilterCount aggregates applications of one filter.
type FilterCount struct {
	FilterID string    `json:"filterId" bson:"_id"`
	Count    int64     `json:"count" bson:"count"`
	LastUsed time.Time `json:"lastUsed" bson:"lastUsed"`
}

// UserFilterPreference is the per-user aggregate maintained by the ledger.
type UserFilterPreference struct {
	UserID       string           `json:"userId" bson:"userId"`
	UsageCount   map[string]int64 `json:"usageCount" bson:"usageCount"`
	RecentlyUsed []string         `json:"recentlyUsed" bson:"recentlyUsed"`
	StyleProfile StyleProfile     `json:"styleProfile" bson:"styleProfile"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// ColorSwatch is one entry of a user's colour palette.
type ColorSwatch struct {
	Color      string  `json:"color" bson:"color"`
	Frequency  float64 `json:"frequency" bson:"frequency"`
	Saturation float64 `json:"saturation" bson:"saturation"`
	Brightness float64 `json:"brightness" bson:"brightness"`
}

// StyleProfile is derived from a user's application history.
type StyleProfile struct {
	PreferredStyles []string      `json:"preferredStyles" bson:"preferredStyles"`
	PreferredMoods  []string      `json:"preferredMoods" bson:"preferredMoods"`
	ColorPalette    []ColorSwatch `json:"colorPalette" bson:"colorPalette"`
	PreferredColors []string      `json:"preferredColors" bson:"preferredColors"`
	FilterStats     []FilterCount `json:"filterStats,omitempty" bson:"filterStats,omitempty"`
}

// Empty reports whether the profile carries no style or mood signal.
func (p StyleProfile) Empty() bool {
	return len(p.PreferredStyles) == 0 && len(p.PreferredMoods) == 0
}

// ── Suggestions ───────────────────────────────────────────────────────────────

// Reason explains where a suggestion came from.
type Reason string

const (
	ReasonFrequentlyUsed    Reason = "frequently_used"
	ReasonStyleMatch        Reason = "style_match"
	ReasonMoodMatch         Reason = "mood_match"
	ReasonTrending          Reason = "trending"
	ReasonContentSimilarity Reason = "content_similarity"
)

// Priority orders reasons for tie-breaking; lower wins.
func (r Reason) Priority() int {
	switch r {
	case ReasonFrequentlyUsed:
		return 0
	case ReasonStyleMatch:
		return 1
	case ReasonMoodMatch:
		return 2
	case ReasonTrending:
		return 3
	case ReasonContentSimilarity:
		return 4
	}
	return 5
}

// Suggestion is a transient, ranked recommendation.
type Suggestion struct {
	FilterID   string  `json:"filterId"`
	Confidence float64 `json:"confidence"`
	Reason     Reason  `json:"reason"`
	MediaID    string  `json:"mediaId"`
	UserID     string  `json:"userId"`
}

// ── AI processing ─────────────────────────────────────────────────────────────

// AIKind selects the AI operation.
type AIKind string

const (
	AIStyleTransfer   AIKind = "style_transfer"
	AIMoodEnhancement AIKind = "mood_enhancement"
)

// AIRequest is the provider-neutral request handled by the gateway.
type AIRequest struct {
	Kind        AIKind         `json:"kind" validate:"required,oneof=style_transfer mood_enhancement"`
	SourceImage []byte         `json:"-" validate:"required"`
	Style       string         `json:"style" validate:"required"`
	Intensity   float64        `json:"intensity" validate:"gte=0,lte=1"`
	ExtraParams map[string]any `json:"extraParams,omitempty"`
}

// AIProcessingResult is the normalised provider response.
type AIProcessingResult struct {
	ProcessedImage []byte         `json:"-"`
	Confidence     float64        `json:"confidence"`
	Duration       time.Duration  `json:"duration"`
	ModelID        string         `json:"modelId"`
	Provider       string         `json:"provider"`
	Params         map[string]any `json:"params,omitempty"`
}
