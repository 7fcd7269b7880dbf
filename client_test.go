package outfit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient(NewMemoryStorage())

	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, "outfit-go/"+Version, client.userAgent)
	assert.NotNil(t, client.Auth)
	assert.NotNil(t, client.Session)
	assert.NotNil(t, client.Wardrobe)
	assert.NotNil(t, client.Outfits)
}

func TestNewClient_WithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}

	client := NewClient(NewMemoryStorage(),
		WithBaseURL("https://outfit.example.com/"),
		WithHTTPClient(customClient),
		WithImageDir("/tmp/outfit-images"),
	)

	assert.Equal(t, "https://outfit.example.com", client.BaseURL())
	assert.Same(t, customClient, client.httpClient)
	assert.Equal(t, "/tmp/outfit-images", client.imageDir)
}

func TestNewClient_WithTimeout(t *testing.T) {
	client := NewClient(NewMemoryStorage(), WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestClient_URL(t *testing.T) {
	client := NewClient(NewMemoryStorage(), WithBaseURL("http://api:8080"))
	assert.Equal(t, "http://api:8080/wardrobe/1/file", client.URL("/wardrobe/1/file"))
	assert.Equal(t, "http://api:8080/wardrobe/1/file", client.URL("wardrobe/1/file"))
	assert.Equal(t, "https://cdn/x.png", client.URL("https://cdn/x.png"))
}

// newTestServer creates a test server and a client pointed at it.
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithBaseURL(server.URL)}, opts...)
	return server, NewClient(NewMemoryStorage(), opts...)
}

// login seeds the client's session without going through the network.
func login(t *testing.T, c *Client, token string) {
	t.Helper()
	c.Session.auth = &fakeAuth{result: &AuthResult{Token: token, User: testUser(1, "Ada")}}
	_, err := c.Session.Login(context.Background(), "u1@example.com", "pw")
	require.NoError(t, err)
	c.Session.auth = c.Auth
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, []BackendItem{})
	})

	_, err := client.Wardrobe.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"), "no token held, no bearer header")
	assert.Equal(t, "outfit-go/"+Version, got.Get("User-Agent"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)

	login(t, client, "tok-1")
	_, err = client.Wardrobe.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", got.Get("Authorization"))
}

func TestAuthService_LoginThroughSession(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Login successful",
			"token":   "tok-9",
			"user":    map[string]any{"id": 9, "email": body["email"], "name": "Nine", "created_at": 1.5},
		})
	})

	var hookCalls atomic.Int32
	client.onUnauthorized = func() { hookCalls.Add(1) }

	_, err := client.Session.Login(context.Background(), "n@example.com", "wrong")
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "Invalid email or password")
	assert.Zero(t, hookCalls.Load(), "failed login is not a session expiry")

	user, err := client.Session.Login(context.Background(), "n@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)
	assert.Equal(t, "tok-9", client.Session.Token())
}

func TestAuthService_LoginFallbackMessage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := client.Session.Login(context.Background(), "a@b.c", "pw")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadGateway, authErr.StatusCode)
	assert.Equal(t, "Login failed", authErr.Message)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	var hits atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := client.Session.Register(context.Background(), RegisterRequest{Email: "not-an-email", Password: "pw", Name: "X"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.Zero(t, hits.Load())
}

func TestAuthService_UpdateProfile(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/auth/profile", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"gender": "female"}, body, "nil fields are not sent")

		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Profile updated successfully",
			"user":    map[string]any{"id": 1, "email": "u1@example.com", "name": "Ada", "gender": "female"},
		})
	})
	login(t, client, "tok-1")

	user, err := client.Session.UpdateProfile(context.Background(), ProfileUpdate{Gender: strPtr("female")})
	require.NoError(t, err)
	require.NotNil(t, user.Gender)
	assert.Equal(t, "female", *user.Gender)
	assert.Equal(t, "female", *client.Session.User().Gender)
}

func TestClient_UnauthorizedClearsSessionOnce(t *testing.T) {
	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		<-release
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
	})
	login(t, client, "tok-1")

	var hookCalls atomic.Int32
	client.onUnauthorized = func() { hookCalls.Add(1) }
	var clears atomic.Int32
	client.Session.Subscribe(func(s Snapshot) {
		if !s.Authenticated() {
			clears.Add(1)
		}
	})

	errs := make(chan error, 2)
	go func() {
		_, err := client.Wardrobe.List(context.Background())
		errs <- err
	}()
	go func() {
		_, err := client.Outfits.Suggest(context.Background(), SuggestParams{City: "Oslo"})
		errs <- err
	}()

	arrived.Wait()
	close(release)

	for i := 0; i < 2; i++ {
		err := <-errs
		assert.ErrorIs(t, err, ErrAuthentication)
	}
	assert.False(t, client.Session.IsAuthenticated())
	assert.Equal(t, int32(1), clears.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestClient_UnauthorizedAfterRelogin(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
	})
	login(t, client, "tok-old")

	errs := make(chan error, 1)
	go func() {
		_, err := client.Wardrobe.List(context.Background())
		errs <- err
	}()

	<-arrived
	login(t, client, "tok-new")
	close(release)

	assert.ErrorIs(t, <-errs, ErrAuthentication)
	assert.Equal(t, "tok-new", client.Session.Token(), "a stale 401 must not end the new session")
}

func TestClient_UnauthorizedWithoutSessionFiresHook(t *testing.T) {
	var sawAuth atomic.Bool
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization") != "")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token missing"})
	}, WithMetrics(prometheus.NewRegistry()))

	var hookCalls atomic.Int32
	client.onUnauthorized = func() { hookCalls.Add(1) }

	_, err := client.Wardrobe.List(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "Token missing")
	assert.False(t, sawAuth.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(client.metrics.invalidations))
}

func TestClient_RequestError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
	})
	login(t, client, "tok-1")

	_, err := client.Wardrobe.List(context.Background())
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "db down", reqErr.Message)
	assert.True(t, client.Session.IsAuthenticated())
}

func TestClient_TransportErrors(t *testing.T) {
	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{truncated")
	})

	_, err := client.Wardrobe.List(context.Background())
	assert.ErrorIs(t, err, ErrTransport)

	server.Close()
	_, err = client.Wardrobe.List(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestWardrobeService_List(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wardrobe", r.URL.Path)
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 7, "filename": "7.jpg", "file_url": "/wardrobe/7/file", "description": "TYPE: winter_coat, COLOR: navy", "created_at": 1.0},
			{"id": 8, "filename": "8.png", "file_url": "/wardrobe/8/file", "description": nil, "created_at": 2.0},
		})
	})
	login(t, client, "tok-1")

	items, err := client.Wardrobe.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, WardrobeItem{
		ID:           "7",
		Name:         "winter coat",
		ImageURL:     "/wardrobe/7/file",
		FallbackText: "TYPE: winter_coat, COLOR: navy",
		Category:     "Outerwear",
	}, items[0])
	assert.Equal(t, WardrobeItem{
		ID:           "8",
		Name:         "Clothing Item",
		ImageURL:     "/wardrobe/8/file",
		FallbackText: "8.png - Wardrobe item",
		Category:     "Other",
	}, items[1])
}

func TestWardrobeService_Get(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wardrobe/3" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "filename": "3.jpg", "file_url": "/wardrobe/3/file", "description": "Blue denim jeans"})
	})
	login(t, client, "tok-1")

	item, err := client.Wardrobe.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Jeans", item.Name)
	assert.Equal(t, "Bottoms", item.Category)

	_, err = client.Wardrobe.Get(context.Background(), 4)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.IsNotFound())
}

func TestWardrobeService_Upload(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)

		uploaded := make([]map[string]any, 0, len(files))
		for i, fh := range files {
			uploaded = append(uploaded, map[string]any{
				"id": i + 1, "filename": fh.Filename, "file_url": "/wardrobe/x/file", "description": "TYPE: t_shirt",
			})
		}
		writeJSON(w, http.StatusCreated, map[string]any{"uploaded": uploaded})
	})
	login(t, client, "tok-1")

	items, err := client.Wardrobe.Upload(context.Background(), []File{
		{Name: "a.jpg", Content: strings.NewReader("a")},
		{Name: "b.png", Content: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t shirt", items[0].Name)
	assert.Equal(t, "Tops", items[0].Category)
}

func TestWardrobeService_UploadPartialFails(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"uploaded": []map[string]any{
			{"id": 1, "filename": "1.jpg", "file_url": "/wardrobe/1/file", "description": "shirt"},
		}})
	})
	login(t, client, "tok-1")

	items, err := client.Wardrobe.Upload(context.Background(), []File{
		{Name: "a.jpg", Content: strings.NewReader("a")},
		{Name: "b.bmp", Content: strings.NewReader("b")},
	})
	assert.Nil(t, items)
	assert.ErrorIs(t, err, ErrPartialUpload)
	assert.ErrorIs(t, err, ErrRequest)
}

func TestWardrobeService_UploadNoFiles(t *testing.T) {
	client := NewClient(NewMemoryStorage())
	_, err := client.Wardrobe.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestWardrobeService_Delete(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/wardrobe/1":
			writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted", "id": 1})
		case "/wardrobe/2":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
		}
	})
	login(t, client, "tok-1")

	ok, err := client.Wardrobe.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Wardrobe.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.Wardrobe.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.False(t, ok)
	assert.False(t, client.Session.IsAuthenticated())
}

func TestOutfitsService_SuggestCityOnly(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/outfit", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Empty(t, r.MultipartForm.File["files"], "no files part without files")
		assert.Equal(t, map[string][]string{"city": {"Oslo"}}, map[string][]string(r.MultipartForm.Value))

		writeJSON(w, http.StatusOK, map[string]any{
			"outfit_descriptions": []any{},
			"season":              "winter",
			"weather": map[string]any{
				"weather": []any{map[string]any{"main": "Snow", "description": "light snow"}},
				"main":    map[string]any{"temp": -3.5},
			},
			"suggestions_raw": "{...}",
			"suggestions": []any{
				map[string]any{
					"wardrobe_id": 7, "reason": "Warm", "fallback_text": nil,
					"item": map[string]any{"id": 7, "filename": "7.jpg", "file_url": "/wardrobe/7/file", "description": "TYPE: winter_coat"},
				},
				map[string]any{"wardrobe_id": nil, "reason": "Grip", "fallback_text": "Insulated boots"},
				map[string]any{"wardrobe_id": nil, "reason": "Misc"},
			},
			"notes": "Layer up.",
		})
	})
	login(t, client, "tok-1")

	res, err := client.Outfits.Suggest(context.Background(), SuggestParams{City: "Oslo"})
	require.NoError(t, err)

	require.Len(t, res.Recommendations, 3)
	assert.Equal(t, Recommendation{ID: "7", SuggestionText: "winter coat", Reason: "Warm", ImageURL: "/wardrobe/7/file"}, res.Recommendations[0])
	assert.Equal(t, Recommendation{ID: "suggestion-1", SuggestionText: "Insulated boots", Reason: "Grip", FallbackText: "Insulated boots"}, res.Recommendations[1])
	assert.Equal(t, Recommendation{ID: "suggestion-2", SuggestionText: "AI-generated suggestion", Reason: "Misc"}, res.Recommendations[2])

	require.NotNil(t, res.Weather)
	assert.Equal(t, "winter", res.Weather.Season)
	assert.Equal(t, "Snow", res.Weather.Condition)
	require.NotNil(t, res.Weather.Temperature)
	assert.Equal(t, -3.5, *res.Weather.Temperature)
	assert.Equal(t, "Layer up.", res.Notes)
	assert.Equal(t, "{...}", res.Raw)
}

func TestOutfitsService_SuggestAllFields(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["files"], 1)
		assert.Equal(t, "south", r.FormValue("hemisphere"))
		assert.Equal(t, "imperial", r.FormValue("units"))
		assert.Equal(t, "2024-07-01", r.FormValue("date"))
		assert.Equal(t, "male", r.FormValue("gender"))
		assert.Equal(t, "brown", r.FormValue("skin_tone"))
		assert.Equal(t, "59.91", r.FormValue("lat"))
		assert.Equal(t, "10.75", r.FormValue("lon"))
		assert.Empty(t, r.FormValue("city"))

		writeJSON(w, http.StatusOK, map[string]any{"season": "winter", "weather": nil, "suggestions": []any{}})
	})
	login(t, client, "tok-1")

	lat, lon := 59.91, 10.75
	res, err := client.Outfits.Suggest(context.Background(), SuggestParams{
		Files:      []File{{Name: "look.jpg", Content: strings.NewReader("img")}},
		Hemisphere: "south",
		Units:      "imperial",
		Date:       "2024-07-01",
		Gender:     "male",
		SkinTone:   "brown",
		Lat:        &lat,
		Lon:        &lon,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Weather)
	assert.Empty(t, res.Recommendations)
}

func TestOutfitsService_SuggestValidation(t *testing.T) {
	client := NewClient(NewMemoryStorage())
	lat := 12.0

	tests := []struct {
		name   string
		params SuggestParams
		field  string
	}{
		{"bad hemisphere", SuggestParams{Hemisphere: "east"}, "hemisphere"},
		{"bad units", SuggestParams{Units: "kelvin"}, "units"},
		{"bad date", SuggestParams{Date: "01/07/2024"}, "date"},
		{"lat without lon", SuggestParams{Lat: &lat}, "lat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Outfits.Suggest(context.Background(), tt.params)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestWardrobeService_FetchImage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wardrobe/5/file", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	}, WithImageDir(t.TempDir()))
	login(t, client, "tok-1")

	img, err := client.Wardrobe.FetchImage(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), img.ItemID)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, int64(9), img.Size)
	assert.True(t, strings.HasSuffix(img.Path, ".png"))

	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))

	require.NoError(t, img.Release())
	_, err = os.Stat(img.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, img.Release(), "second release is a no-op")
}

func TestImageSet(t *testing.T) {
	dir := t.TempDir()
	newImage := func(id int64, name string) *Image {
		path := dir + "/" + name
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
		return &Image{ItemID: id, Path: path}
	}
	exists := func(img *Image) bool {
		_, err := os.Stat(img.Path)
		return err == nil
	}

	set := NewImageSet()
	first := newImage(1, "a")
	second := newImage(1, "b")
	other := newImage(2, "c")

	require.NoError(t, set.Put(first))
	require.NoError(t, set.Put(other))
	require.NoError(t, set.Put(second))

	assert.False(t, exists(first), "replaced image is released")
	got, ok := set.Get(1)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 2, set.Len())

	require.NoError(t, set.Remove(2))
	assert.False(t, exists(other))

	require.NoError(t, set.Close())
	assert.False(t, exists(second))
	assert.Equal(t, 0, set.Len())

	late := newImage(3, "d")
	require.NoError(t, set.Put(late))
	assert.False(t, exists(late), "put after close releases immediately")

	var verr *ValidationError
	assert.ErrorAs(t, NewImageSet().Put(nil), &verr)
}

func TestClient_Health(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": "2024-01-01T00:00:00"})
	})
	login(t, client, "tok-1")

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wardrobe" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}, WithMetrics(reg))
	login(t, client, "tok-1")

	_, err := client.Health(context.Background())
	require.NoError(t, err)
	_, err = client.Wardrobe.List(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.requestsTotal.WithLabelValues("health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.requestsTotal.WithLabelValues("wardrobe_list", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.invalidations))
}

func TestNewMetrics_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)

	var second *Metrics
	require.NotPanics(t, func() { second = NewMetrics(reg) })

	second.observe("health", http.StatusOK, time.Millisecond)
	second.sessionInvalidated()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.requestsTotal.WithLabelValues("health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.invalidations))

	count, err := testutil.GatherAndCount(reg, "outfit_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
