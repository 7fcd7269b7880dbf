package outfit

import (
	"context"
	"net/http"
	"strconv"
)

// OutfitsService requests AI outfit suggestions.
type OutfitsService struct {
	client *Client
}

// Suggest posts the outfit photos and context to /outfit and normalizes the
// answer. Files are optional; without them the backend suggests from the
// wardrobe alone. Empty parameters are not sent.
func (s *OutfitsService) Suggest(ctx context.Context, params SuggestParams) (*Suggestions, error) {
	if err := s.client.validateStruct(params); err != nil {
		return nil, err
	}
	if (params.Lat == nil) != (params.Lon == nil) {
		return nil, NewValidationError("lat", "lat and lon must be set together")
	}

	body, contentType, err := encodeMultipart(params.Files, suggestFields(params))
	if err != nil {
		return nil, err
	}

	var res suggestionsResponse
	if err := s.client.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/outfit",
		endpoint:    "outfit_suggest",
		body:        body,
		contentType: contentType,
		fallback:    "Suggestions failed",
	}, &res); err != nil {
		return nil, err
	}

	out := &Suggestions{
		Recommendations:    make([]Recommendation, len(res.Suggestions)),
		Weather:            SummarizeWeather(res.Season, res.Weather),
		Season:             res.Season,
		Notes:              notesText(res.Notes),
		OutfitDescriptions: res.OutfitDescriptions,
		Raw:                res.SuggestionsRaw,
	}
	for i, sg := range res.Suggestions {
		out.Recommendations[i] = MapSuggestion(sg, i)
	}
	return out, nil
}

func suggestFields(p SuggestParams) []formField {
	fields := []formField{
		{"city", p.City},
		{"hemisphere", p.Hemisphere},
		{"units", p.Units},
		{"date", p.Date},
		{"gender", p.Gender},
		{"skin_tone", p.SkinTone},
	}
	if p.Lat != nil && p.Lon != nil {
		fields = append(fields,
			formField{"lat", strconv.FormatFloat(*p.Lat, 'f', -1, 64)},
			formField{"lon", strconv.FormatFloat(*p.Lon, 'f', -1, 64)},
		)
	}
	return fields
}
