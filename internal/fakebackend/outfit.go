package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxSuggestedItems caps how many wardrobe items a suggestion references.
const maxSuggestedItems = 3

type suggestion struct {
	WardrobeID   *int64    `json:"wardrobe_id"`
	Reason       string    `json:"reason"`
	FallbackText *string   `json:"fallback_text"`
	Item         *itemJSON `json:"item,omitempty"`
}

type outfitDescription struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
	ImageIndex  int    `json:"image_index"`
}

type suggestResponse struct {
	OutfitDescriptions []outfitDescription `json:"outfit_descriptions"`
	Season             string              `json:"season"`
	Weather            any                 `json:"weather"`
	SuggestionsRaw     string              `json:"suggestions_raw"`
	Suggestions        []suggestion        `json:"suggestions"`
	Notes              string              `json:"notes"`
}

// InferSeason maps a month to a season, inverted for the southern
// hemisphere. Any hemisphere not starting with "n" counts as southern.
func InferSeason(t time.Time, hemisphere string) string {
	north := []string{"winter", "spring", "summer", "autumn"}
	south := []string{"summer", "autumn", "winter", "spring"}

	// Dec, Jan, Feb -> 0; Mar..May -> 1; Jun..Aug -> 2; Sep..Nov -> 3
	idx := (int(t.Month()) % 12) / 3
	if strings.HasPrefix(strings.ToLower(hemisphere), "n") {
		return north[idx]
	}
	return south[idx]
}

// cannedWeather mimics the weather provider payload the backend forwards.
func cannedWeather(units string) map[string]any {
	temp := 12.5
	switch units {
	case "imperial":
		temp = 54.5
	case "standard":
		temp = 285.65
	}
	return map[string]any{
		"weather": []map[string]any{{"main": "Clouds", "description": "overcast clouds"}},
		"main":    map[string]any{"temp": temp},
	}
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	// The body may be empty or form-encoded when no field is set.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
	} else {
		_ = r.ParseForm()
	}

	city := r.FormValue("city")
	hemisphere := strings.ToLower(r.FormValue("hemisphere"))
	if hemisphere == "" {
		hemisphere = "north"
	}
	units := strings.ToLower(r.FormValue("units"))
	if units == "" {
		units = "metric"
	}

	when := s.now().UTC()
	if d := r.FormValue("date"); d != "" {
		if parsed, err := time.Parse("2006-01-02", d); err == nil {
			when = parsed
		}
	}
	season := InferSeason(when, hemisphere)

	var weather any
	switch {
	case city != "":
		weather = cannedWeather(units)
	case r.FormValue("lat") != "" && r.FormValue("lon") != "":
		_, latErr := strconv.ParseFloat(r.FormValue("lat"), 64)
		_, lonErr := strconv.ParseFloat(r.FormValue("lon"), 64)
		if latErr == nil && lonErr == nil {
			weather = cannedWeather(units)
		}
	}

	descriptions := make([]outfitDescription, 0)
	for idx, fh := range uploadedFiles(r) {
		ext, ok := extension(fh.Filename)
		if !ok {
			continue
		}
		descriptions = append(descriptions, outfitDescription{
			Filename:    fmt.Sprintf("outfit_%s.%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8], ext),
			Description: describe(fh.Filename),
			ImageIndex:  idx + 1,
		})
	}

	suggestions := make([]suggestion, 0, maxSuggestedItems+1)
	for i, it := range s.userItems(currentUserID(r)) {
		if i == maxSuggestedItems {
			break
		}
		id := it.ID
		item := it
		suggestions = append(suggestions, suggestion{
			WardrobeID: &id,
			Reason:     fmt.Sprintf("Works for a %s day", season),
			Item:       &item,
		})
	}
	fallback := "Neutral trench coat"
	suggestions = append(suggestions, suggestion{
		Reason:       "Adds a layer your wardrobe is missing",
		FallbackText: &fallback,
	})

	notes := fmt.Sprintf("Dress for %s.", season)
	raw, err := json.Marshal(map[string]any{
		"recommendations": rawRecommendations(suggestions),
		"notes":           notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Suggestions failed")
		return
	}

	writeJSON(w, http.StatusOK, suggestResponse{
		OutfitDescriptions: descriptions,
		Season:             season,
		Weather:            weather,
		SuggestionsRaw:     string(raw),
		Suggestions:        suggestions,
		Notes:              notes,
	})
}

// rawRecommendations strips the resolved items, leaving what the model
// itself would have returned.
func rawRecommendations(in []suggestion) []suggestion {
	out := make([]suggestion, len(in))
	for i, s := range in {
		s.Item = nil
		out[i] = s
	}
	return out
}
