package suggest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// AnalyzeStyle derives the style profile of userID from their application
// history and writes it back to the preference aggregate.  A failed write is
// logged; the derived profile is still returned.
func (e *Engine) AnalyzeStyle(ctx context.Context, userID string) (core.StyleProfile, error) {
	if userID == "" {
		return core.StyleProfile{}, apperrors.InvalidInput("suggest.analyze_style", fmt.Errorf("user id is required"))
	}
	history, err := e.usage.History(ctx, userID)
	if err != nil {
		return core.StyleProfile{}, apperrors.Wrap(apperrors.CategoryStorage, "suggest.analyze_style", err)
	}

	stats := groupHistory(history)
	profile := core.StyleProfile{FilterStats: stats}

	var total int64
	for _, s := range stats {
		total += s.Count
	}

	styles := newOrderedSet()
	moods := newOrderedSet()
	weights := map[string]int64{}
	var colorOrder []string

	for _, s := range stats {
		p, err := e.resolver.Lookup(ctx, s.FilterID)
		if err != nil {
			e.logger.Debug("history entry without preset", "filter_id", s.FilterID, "error", err)
			continue
		}
		switch p.Category {
		case core.CategoryArtistic:
			styles.add(p.Type)
		case core.CategoryMood:
			moods.add(p.Type)
		}
		if c := normalizeHex(p.Color); c != "" {
			if _, ok := weights[c]; !ok {
				colorOrder = append(colorOrder, c)
			}
			weights[c] += s.Count
		}
	}
	profile.PreferredStyles = styles.items
	profile.PreferredMoods = moods.items

	for _, c := range colorOrder {
		sat, bri, _ := hexSatBri(c)
		profile.ColorPalette = append(profile.ColorPalette, core.ColorSwatch{
			Color:      c,
			Frequency:  float64(weights[c]) / float64(total),
			Saturation: sat,
			Brightness: bri,
		})
	}
	sort.SliceStable(profile.ColorPalette, func(i, j int) bool {
		return profile.ColorPalette[i].Frequency > profile.ColorPalette[j].Frequency
	})
	for _, sw := range profile.ColorPalette {
		if sw.Frequency >= e.cfg.PaletteThreshold {
			profile.PreferredColors = append(profile.PreferredColors, sw.Color)
		}
	}

	if err := e.usage.SaveStyleProfile(ctx, userID, profile); err != nil {
		e.logger.Warn("style profile not saved", "user_id", userID, "error", err)
	}
	return profile, nil
}

// groupHistory counts applications per filter, most applied first.
func groupHistory(history []core.FilterApplication) []core.FilterCount {
	byID := map[string]*core.FilterCount{}
	for _, a := range history {
		c, ok := byID[a.FilterID]
		if !ok {
			c = &core.FilterCount{FilterID: a.FilterID}
			byID[a.FilterID] = c
		}
		c.Count++
		if a.AppliedAt.After(c.LastUsed) {
			c.LastUsed = a.AppliedAt
		}
	}
	out := make([]core.FilterCount, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sortCounts(out)
	return out
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet { return &orderedSet{seen: map[string]bool{}} }

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// normalizeHex returns c as lowercase "#rrggbb", or "" when it is not a
// colour.  The three digit short form is expanded.
func normalizeHex(c string) string {
	c = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "#"))
	if len(c) == 3 {
		c = string([]byte{c[0], c[0], c[1], c[1], c[2], c[2]})
	}
	if len(c) != 6 {
		return ""
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return ""
	}
	return "#" + c
}

// hexSatBri returns the HSV saturation and value of a "#rrggbb" colour.
func hexSatBri(c string) (sat, bri float64, ok bool) {
	v, err := strconv.ParseUint(strings.TrimPrefix(c, "#"), 16, 32)
	if err != nil {
		return 0, 0, false
	}
	r := float64(v>>16&0xff) / 255
	g := float64(v>>8&0xff) / 255
	b := float64(v&0xff) / 255

	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	if hi > 0 {
		sat = (hi - lo) / hi
	}
	return sat, hi, true
}
