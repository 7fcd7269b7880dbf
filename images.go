package outfit

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newImageID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Image is a wardrobe photo downloaded to a temporary file. The owner must
// call Release when done; releasing more than once is a no-op.
type Image struct {
	ItemID      int64
	Path        string
	ContentType string
	Size        int64

	once sync.Once
	err  error
}

// Release removes the temporary file.
func (img *Image) Release() error {
	img.once.Do(func() {
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			img.err = err
		}
	})
	return img.err
}

// FetchImage downloads the photo of item id with the session's bearer
// token and stores it under the client's image directory.
func (s *WardrobeService) FetchImage(ctx context.Context, id int64) (*Image, error) {
	var img *Image
	err := s.client.do(ctx, request{
		method:   http.MethodGet,
		path:     itemPath(id) + "/file",
		endpoint: "wardrobe_image",
	}, func(resp *http.Response) error {
		var err error
		img, err = s.client.saveImage(id, resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Client) saveImage(id int64, resp *http.Response) (*Image, error) {
	dir := c.imageDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	contentType := resp.Header.Get(headerContentType)
	ext := ".img"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			ext = exts[0]
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("outfit-%d-%s%s", id, newImageID(), ext))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, &TransportError{Op: "GET " + itemPath(id) + "/file", Err: err}
	}

	return &Image{
		ItemID:      id,
		Path:        path,
		ContentType: contentType,
		Size:        n,
	}, nil
}

// ImageSet owns the images currently on display, keyed by item id.
// Replacing an image releases the old one; Close releases all of them.
type ImageSet struct {
	mu     sync.Mutex
	images map[int64]*Image
	closed bool
}

// NewImageSet returns an empty set.
func NewImageSet() *ImageSet {
	return &ImageSet{images: make(map[int64]*Image)}
}

// Put stores img, releasing any image previously held for the same item.
// After Close, img is released immediately.
func (s *ImageSet) Put(img *Image) error {
	if img == nil {
		return NewValidationError("image", "must not be nil")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return img.Release()
	}
	prev := s.images[img.ItemID]
	s.images[img.ItemID] = img
	s.mu.Unlock()

	if prev != nil && prev != img {
		return prev.Release()
	}
	return nil
}

// Get returns the image held for id.
func (s *ImageSet) Get(id int64) (*Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	return img, ok
}

// Len returns the number of held images.
func (s *ImageSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// Remove releases and forgets the image held for id.
func (s *ImageSet) Remove(id int64) error {
	s.mu.Lock()
	img := s.images[id]
	delete(s.images, id)
	s.mu.Unlock()

	if img == nil {
		return nil
	}
	return img.Release()
}

// Close releases every held image. Further Puts release immediately.
func (s *ImageSet) Close() error {
	s.mu.Lock()
	images := s.images
	s.images = make(map[int64]*Image)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, img := range images {
		if err := img.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
