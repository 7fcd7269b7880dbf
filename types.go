// Package outfit is a client for the outfit suggestion backend.
//
// It holds the authenticated session (bearer token plus user profile) in a
// persistent SessionStore and exposes the wardrobe and suggestion endpoints
// through a Client whose responses are normalized into display-ready shapes.
package outfit

import (
	"encoding/json"
	"io"
	"time"
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:8080"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
	// Version is reported in the User-Agent header.
	Version = "1.0.0"
)

// Persisted session keys. Both are always written and cleared together.
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

// User is the profile returned by the auth endpoints.
type User struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	SkinTone  *string `json:"skin_tone,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	CreatedAt float64 `json:"created_at"`
}

// Created returns CreatedAt as a time.
func (u *User) Created() time.Time {
	sec := int64(u.CreatedAt)
	nsec := int64((u.CreatedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.SkinTone != nil {
		v := *u.SkinTone
		cp.SkinTone = &v
	}
	if u.Gender != nil {
		v := *u.Gender
		cp.Gender = &v
	}
	return &cp
}

// RegisterRequest carries the fields posted to /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
	SkinTone string `json:"skin_tone,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// ProfileUpdate is a partial user record. Nil fields are not sent.
// Email is immutable after registration and cannot be changed here.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	SkinTone *string `json:"skin_tone,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

// AuthResult is the success body of login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// BackendItem is a wardrobe item as the backend returns it.
type BackendItem struct {
	ID          int64   `json:"id"`
	Filename    string  `json:"filename"`
	FileURL     string  `json:"file_url"`
	Description string  `json:"description"`
	CreatedAt   float64 `json:"created_at"`
	UserID      int64   `json:"user_id,omitempty"`
}

// WardrobeItem is the display shape derived from a BackendItem.
type WardrobeItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url,omitempty"`
	FallbackText string `json:"fallback_text,omitempty"`
	Category     string `json:"category"`
}

// BackendSuggestion is one AI recommendation as the backend returns it.
// WardrobeID is nil when the model suggests something not in the wardrobe.
type BackendSuggestion struct {
	WardrobeID   *int64       `json:"wardrobe_id"`
	Reason       string       `json:"reason"`
	FallbackText *string      `json:"fallback_text,omitempty"`
	Item         *BackendItem `json:"item,omitempty"`
}

// Recommendation is the display shape derived from a BackendSuggestion.
type Recommendation struct {
	ID             string `json:"id"`
	SuggestionText string `json:"suggestion_text"`
	Reason         string `json:"reason"`
	ImageURL       string `json:"image_url,omitempty"`
	FallbackText   string `json:"fallback_text,omitempty"`
}

// WeatherSummary is derived from the raw weather payload.
type WeatherSummary struct {
	Season      string   `json:"season"`
	Condition   string   `json:"condition"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// OutfitDescription is the AI description of one uploaded outfit photo.
type OutfitDescription struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
	ImageIndex  int    `json:"image_index"`
}

// File is an upload part. Name is sent as the multipart filename.
type File struct {
	Name    string
	Content io.Reader
}

// SuggestParams are the inputs of SuggestOutfits. Every empty field is
// omitted from the request.
type SuggestParams struct {
	Files      []File
	City       string
	Hemisphere string `validate:"omitempty,oneof=north south"`
	Units      string `validate:"omitempty,oneof=metric imperial standard"`
	Date       string `validate:"omitempty,datetime=2006-01-02"`
	Gender     string
	SkinTone   string
	Lat        *float64 `validate:"omitempty,latitude"`
	Lon        *float64 `validate:"omitempty,longitude"`
}

// Suggestions is the normalized result of SuggestOutfits.
type Suggestions struct {
	Recommendations    []Recommendation    `json:"recommendations"`
	Weather            *WeatherSummary     `json:"weather,omitempty"`
	Season             string              `json:"season,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	OutfitDescriptions []OutfitDescription `json:"outfit_descriptions,omitempty"`
	Raw                string              `json:"-"`
}

// suggestionsResponse is the wire format of POST /outfit.
type suggestionsResponse struct {
	OutfitDescriptions []OutfitDescription `json:"outfit_descriptions"`
	Season             string              `json:"season"`
	Weather            json.RawMessage     `json:"weather"`
	SuggestionsRaw     string              `json:"suggestions_raw"`
	Suggestions        []BackendSuggestion `json:"suggestions"`
	Notes              json.RawMessage     `json:"notes"`
}

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
