// Package regions maps free-text region input to canonical Danish region
// keys and filters places by axis-aligned bounding boxes.
package regions

import (
	"sort"
	"strings"

	"sheltersearch/internal/domain"
)

// BBox is an axis-aligned bounding box in WGS84 degrees.
type BBox struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
}

// Contains reports whether (lat, lng) falls inside the box, borders included.
func (b BBox) Contains(lat, lng float64) bool {
	return b.LatMin <= lat && lat <= b.LatMax && b.LngMin <= lng && lng <= b.LngMax
}

// Presets: canonical region key -> bounding box.
var Presets = map[string]BBox{
	"sjælland":        {54.60, 55.95, 11.00, 12.80},
	"fyn":             {55.00, 55.60, 9.60, 10.80},
	"jylland":         {54.55, 57.80, 8.00, 10.60},
	"bornholm":        {55.00, 55.40, 14.60, 15.30},
	"lolland-falster": {54.50, 54.95, 11.05, 12.30},
	"møn":             {54.85, 55.08, 12.15, 12.60},
	"amager":          {55.55, 55.75, 12.45, 12.75},
}

// aliases: normalized ASCII form -> canonical key. Covers English names and
// common misspellings.
var aliases = map[string]string{
	"sjaelland":      "sjælland",
	"zealand":        "sjælland",
	"sjalland":       "sjælland",
	"fyn":            "fyn",
	"funen":          "fyn",
	"jylland":        "jylland",
	"jutland":        "jylland",
	"jyland":         "jylland",
	"bornholm":       "bornholm",
	"lolland":        "lolland-falster",
	"falster":        "lolland-falster",
	"lollandfalster": "lolland-falster",
	"moen":           "møn",
	"mon":            "møn",
	"amager":         "amager",
}

var folder = strings.NewReplacer(
	"æ", "ae",
	"ø", "oe",
	"å", "aa",
	" ", "",
	"-", "",
	"_", "",
)

// Normalize lower-cases, folds Danish letters to their ASCII digraphs, and
// strips whitespace, hyphens and underscores.
func Normalize(s string) string {
	return folder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Resolve maps user input to a canonical preset key. Exact (case-insensitive)
// canonical match wins, then alias lookup on the normalized form, then loose
// substring matching against keys and aliases. Returns "" when nothing fits.
func Resolve(input string) string {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return ""
	}
	if _, ok := Presets[raw]; ok {
		return raw
	}
	norm := Normalize(raw)
	if key, ok := aliases[norm]; ok {
		return key
	}
	for _, key := range Keys() {
		if strings.Contains(key, raw) || strings.Contains(raw, key) {
			return key
		}
	}
	for _, alias := range sortedAliases() {
		if strings.Contains(alias, norm) || strings.Contains(norm, alias) {
			return aliases[alias]
		}
	}
	return ""
}

// ResolveAll resolves each input, drops the unknown ones, and returns the
// deduplicated canonical keys in sorted order. The second return lists the
// inputs that did not resolve.
func ResolveAll(inputs []string) (keys []string, unknown []string) {
	seen := map[string]bool{}
	for _, in := range inputs {
		key := Resolve(in)
		if key == "" {
			unknown = append(unknown, in)
			continue
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, unknown
}

func sortedAliases() []string {
	out := make([]string, 0, len(aliases))
	for a := range aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Keys returns the canonical preset keys, sorted.
func Keys() []string {
	out := make([]string, 0, len(Presets))
	for k := range Presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Aliases returns the accepted normalized aliases for one canonical key,
// sorted.
func Aliases(key string) []string {
	var out []string
	for a, k := range aliases {
		if k == key {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Classify filters places down to those whose coordinates fall inside at
// least one of the requested regions (OR across keys). Places without
// coordinates are dropped. When a kept place has no upstream region label,
// the first matching key fills it in. With no keys the input is returned
// unchanged: no region constraint.
func Classify(places []domain.Place, keys []string) []domain.Place {
	if len(keys) == 0 {
		return places
	}
	kept := make([]domain.Place, 0, len(places))
	for _, p := range places {
		if !p.HasCoords() {
			continue
		}
		for _, key := range keys {
			box, ok := Presets[key]
			if !ok || !box.Contains(*p.Lat, *p.Lng) {
				continue
			}
			if p.Region == "" {
				p.Region = key
			}
			kept = append(kept, p)
			break
		}
	}
	return kept
}
