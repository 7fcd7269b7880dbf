package outfit

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Fallback display values.
const (
	DefaultItemName       = "Clothing Item"
	DefaultCategory       = "Other"
	DefaultSuggestionText = "AI-generated suggestion"
	UnknownCondition      = "Unknown"
)

var (
	typeMarker = regexp.MustCompile(`(?i)TYPE:\s*([^,\n]+)`)
	capsLine   = regexp.MustCompile(`^[A-Z][A-Z\s_-]+$`)
	lineNoise  = strings.NewReplacer(":", "", "-", "", "*", "")
)

// clothingTerms are tried in order when the description has no marker.
var clothingTerms = []string{
	"shirt", "t-shirt", "jeans", "pants", "dress", "jacket", "hoodie",
	"sweater", "skirt", "shorts", "blouse", "top", "bottom", "hat", "cap",
	"beanie",
}

type categoryRule struct {
	name  string
	terms []string
}

// categoryRules are checked in order; the first matching term wins.
// Outerwear terms are kept out of Tops so coats and jackets are not
// classified as tops.
var categoryRules = []categoryRule{
	{"Tops", []string{"shirt", "t-shirt", "blouse", "top", "tank", "crop", "sweater", "hoodie"}},
	{"Bottoms", []string{"jeans", "pants", "trousers", "shorts", "skirt", "dress", "leggings", "joggers"}},
	{"Outerwear", []string{"jacket", "coat", "blazer", "cardigan", "vest", "outerwear"}},
	{"Accessories", []string{"hat", "cap", "beanie", "scarf", "belt", "bag", "watch", "jewelry", "sunglasses"}},
	{"Footwear", []string{"shoes", "boots", "sneakers", "sandals", "heels", "flats"}},
}

// ExtractItemName derives a short display name from an AI description.
//
// In order: the value of a "TYPE:" marker, the first all-caps line
// (title-cased), the first known clothing term, else "Clothing Item".
func ExtractItemName(description string) string {
	if description == "" {
		return DefaultItemName
	}

	if m := typeMarker.FindStringSubmatch(description); m != nil {
		if name := strings.TrimSpace(strings.ReplaceAll(m[1], "_", " ")); name != "" {
			return name
		}
	}

	for _, line := range strings.Split(description, "\n") {
		clean := lineNoise.Replace(strings.TrimSpace(line))
		if len(clean) > 0 && len(clean) < 50 && capsLine.MatchString(clean) {
			return titleCase(strings.ToLower(strings.ReplaceAll(clean, "_", " ")))
		}
	}

	lower := strings.ToLower(description)
	for _, term := range clothingTerms {
		if strings.Contains(lower, term) {
			return strings.ToUpper(term[:1]) + term[1:]
		}
	}

	return DefaultItemName
}

// ExtractItemCategory maps a description to Tops, Bottoms, Outerwear,
// Accessories or Footwear, else "Other".
func ExtractItemCategory(description string) string {
	if description == "" {
		return DefaultCategory
	}
	lower := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				return rule.name
			}
		}
	}
	return DefaultCategory
}

// titleCase upper-cases every ASCII letter that starts a word.
func titleCase(s string) string {
	b := []byte(s)
	for i := range b {
		if (i == 0 || !isWordByte(b[i-1])) && b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// MapWardrobeItem converts a backend item into its display shape.
func MapWardrobeItem(item BackendItem) WardrobeItem {
	fallback := item.Description
	if fallback == "" {
		fallback = item.Filename + " - Wardrobe item"
	}
	return WardrobeItem{
		ID:           strconv.FormatInt(item.ID, 10),
		Name:         ExtractItemName(item.Description),
		ImageURL:     item.FileURL,
		FallbackText: fallback,
		Category:     ExtractItemCategory(item.Description),
	}
}

// MapSuggestion converts the index-th backend suggestion into a
// Recommendation.
func MapSuggestion(s BackendSuggestion, index int) Recommendation {
	rec := Recommendation{
		ID:     "suggestion-" + strconv.Itoa(index),
		Reason: s.Reason,
	}
	if s.WardrobeID != nil {
		rec.ID = strconv.FormatInt(*s.WardrobeID, 10)
	}
	if s.FallbackText != nil {
		rec.FallbackText = *s.FallbackText
	}

	switch {
	case s.Item != nil:
		rec.SuggestionText = ExtractItemName(s.Item.Description)
		rec.ImageURL = s.Item.FileURL
	case rec.FallbackText != "":
		rec.SuggestionText = rec.FallbackText
	default:
		rec.SuggestionText = DefaultSuggestionText
	}
	return rec
}

type rawWeather struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// SummarizeWeather reduces the raw weather payload to a WeatherSummary.
// It returns nil when there is no payload.
func SummarizeWeather(season string, raw json.RawMessage) *WeatherSummary {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	summary := &WeatherSummary{Season: season, Condition: UnknownCondition}

	var w rawWeather
	if err := json.Unmarshal(raw, &w); err != nil {
		return summary
	}
	if len(w.Weather) > 0 {
		switch {
		case w.Weather[0].Main != "":
			summary.Condition = w.Weather[0].Main
		case w.Weather[0].Description != "":
			summary.Condition = w.Weather[0].Description
		}
	}
	summary.Temperature = w.Main.Temp
	return summary
}

// notesText renders the notes field, which is free text but may come back
// as any JSON value.
func notesText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
