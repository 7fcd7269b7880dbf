package outfit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

// Client is the outfit backend client.
//
// Use NewClient with a Storage to create a client; the session is kept in
// that storage across restarts:
//
//	store, _ := outfit.NewFileStorage("/home/me/.outfit/session.json")
//	client := outfit.NewClient(store, outfit.WithBaseURL("http://localhost:8080"))
//	if err := client.Session.Restore(ctx); err != nil { ... }
//	items, err := client.Wardrobe.List(ctx)
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	metrics        *Metrics
	onUnauthorized func()
	imageDir       string
	userAgent      string
	validate       *validator.Validate

	// Services
	Auth     *AuthService
	Session  *SessionStore
	Wardrobe *WardrobeService
	Outfits  *OutfitsService
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
//
// Example:
//
//	httpClient := &http.Client{Timeout: 60 * time.Second}
//	client := outfit.NewClient(store, outfit.WithHTTPClient(httpClient))
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg != nil {
			c.metrics = NewMetrics(reg)
		}
	}
}

// WithOnUnauthorized sets a hook fired when a request is rejected with 401
// and the session was cleared because of it. A front end uses it to send
// the user back to the login entry point.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithImageDir sets where FetchImage writes temporary files. The default
// is the OS temp directory.
func WithImageDir(dir string) Option {
	return func(c *Client) {
		c.imageDir = dir
	}
}

// NewClient creates a client whose session persists in storage. The
// session starts logged out; call Session.Restore to load it.
func NewClient(storage Storage, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		userAgent: "outfit-go/" + Version,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Initialize services
	c.Auth = &AuthService{client: c}
	c.Session = NewSessionStore(storage, c.Auth, WithSessionLogger(c.logger))
	c.Wardrobe = &WardrobeService{client: c}
	c.Outfits = &OutfitsService{client: c}

	return c
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves a backend-relative path such as an item's file_url.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// validateStruct checks v's validate tags and reports the first failure as
// a *ValidationError.
func (c *Client) validateStruct(v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(toSnake(fe.Field()), fmt.Sprintf("failed %q check", fe.Tag()))
	}
	return err
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
