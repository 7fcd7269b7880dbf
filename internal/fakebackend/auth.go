package fakebackend

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type user struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	SkinTone     *string `json:"skin_tone"`
	Gender       *string `json:"gender"`
	CreatedAt    float64 `json:"created_at"`
	passwordHash []byte
}

func (u *user) clone() *user {
	cp := *u
	return &cp
}

type registerRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	SkinTone *string `json:"skin_tone"`
	Gender   *string `json:"gender"`
}

type loginRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// profileUpdate distinguishes absent keys from explicit nulls.
type profileUpdate map[string]json.RawMessage

type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *user  `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == nil || req.Password == nil || req.Name == nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: email, password, name")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}

	email := strings.ToLower(strings.TrimSpace(*req.Email))

	s.mu.Lock()
	if _, exists := s.byEmail[email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &user{
		ID:           s.nextUserID,
		Email:        email,
		Name:         strings.TrimSpace(*req.Name),
		SkinTone:     req.SkinTone,
		Gender:       req.Gender,
		CreatedAt:    unixSeconds(s.now()),
		passwordHash: hash,
	}
	s.nextUserID++
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	out := u.clone()
	s.mu.Unlock()

	token, err := s.issueToken(out.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Message: "User registered successfully", Token: token, User: out})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == nil || req.Password == nil {
		writeError(w, http.StatusBadRequest, "Missing email or password")
		return
	}

	email := strings.ToLower(strings.TrimSpace(*req.Email))

	s.mu.Lock()
	var u *user
	if id, ok := s.byEmail[email]; ok {
		u = s.users[id].clone()
	}
	s.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(*req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Message: "Login successful", Token: token, User: u})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[currentUserID(r)].clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	upd := profileUpdate{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	var name string
	var skinTone, gender *string
	if raw, ok := upd["name"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			writeError(w, http.StatusBadRequest, "name must be a string")
			return
		}
	}
	if raw, ok := upd["skin_tone"]; ok {
		if err := json.Unmarshal(raw, &skinTone); err != nil {
			writeError(w, http.StatusBadRequest, "skin_tone must be a string")
			return
		}
	}
	if raw, ok := upd["gender"]; ok {
		if err := json.Unmarshal(raw, &gender); err != nil {
			writeError(w, http.StatusBadRequest, "gender must be a string")
			return
		}
	}

	s.mu.Lock()
	u := s.users[currentUserID(r)]
	if _, ok := upd["name"]; ok {
		u.Name = strings.TrimSpace(name)
	}
	if _, ok := upd["skin_tone"]; ok {
		u.SkinTone = skinTone
	}
	if _, ok := upd["gender"]; ok {
		u.Gender = gender
	}
	out := u.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    out,
	})
}
