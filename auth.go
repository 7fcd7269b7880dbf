package outfit

import (
	"context"
	"net/http"
)

// AuthService calls the /auth endpoints. It implements Authenticator and
// is normally driven through the SessionStore rather than used directly.
type AuthService struct {
	client *Client
}

var _ Authenticator = (*AuthService)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userEnvelope struct {
	User *User `json:"user"`
}

// Login posts credentials to /auth/login.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := s.client.doJSON(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		endpoint:  "auth_login",
		jsonBody:  loginRequest{Email: email, Password: password},
		anonymous: true,
		authFlow:  true,
		fallback:  "Login failed",
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Register posts a new account to /auth/register.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := s.client.validateStruct(req); err != nil {
		return nil, err
	}
	var res AuthResult
	err := s.client.doJSON(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/register",
		endpoint:  "auth_register",
		jsonBody:  req,
		anonymous: true,
		authFlow:  true,
		fallback:  "Registration failed",
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateProfile sends a partial profile to PUT /auth/profile using token.
func (s *AuthService) UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (*User, error) {
	var env userEnvelope
	err := s.client.doJSON(ctx, request{
		method:   http.MethodPut,
		path:     "/auth/profile",
		endpoint: "auth_profile_update",
		jsonBody: upd,
		token:    token,
		fallback: "Profile update failed",
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

// Profile fetches the user record behind token.
func (s *AuthService) Profile(ctx context.Context, token string) (*User, error) {
	var env userEnvelope
	err := s.client.doJSON(ctx, request{
		method:   http.MethodGet,
		path:     "/auth/profile",
		endpoint: "auth_profile",
		token:    token,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}
