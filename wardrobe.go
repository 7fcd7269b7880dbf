package outfit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
)

// WardrobeService handles the wardrobe endpoints.
type WardrobeService struct {
	client *Client
}

type uploadResponse struct {
	Uploaded []BackendItem `json:"uploaded"`
}

// List returns the caller's wardrobe, newest first as the backend orders it.
func (s *WardrobeService) List(ctx context.Context) ([]WardrobeItem, error) {
	var items []BackendItem
	if err := s.client.doJSON(ctx, request{
		method:   http.MethodGet,
		path:     "/wardrobe",
		endpoint: "wardrobe_list",
	}, &items); err != nil {
		return nil, err
	}

	out := make([]WardrobeItem, len(items))
	for i, item := range items {
		out[i] = MapWardrobeItem(item)
	}
	return out, nil
}

// Get returns a single wardrobe item.
func (s *WardrobeService) Get(ctx context.Context, id int64) (*WardrobeItem, error) {
	var item BackendItem
	if err := s.client.doJSON(ctx, request{
		method:   http.MethodGet,
		path:     itemPath(id),
		endpoint: "wardrobe_get",
	}, &item); err != nil {
		return nil, err
	}
	mapped := MapWardrobeItem(item)
	return &mapped, nil
}

// Upload sends files as repeated "files" parts. The upload is
// all-or-nothing: if the backend accepts fewer items than were sent the
// call fails with ErrPartialUpload and returns no items.
func (s *WardrobeService) Upload(ctx context.Context, files []File) ([]WardrobeItem, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	body, contentType, err := encodeMultipart(files, nil)
	if err != nil {
		return nil, err
	}

	var res uploadResponse
	if err := s.client.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/wardrobe",
		endpoint:    "wardrobe_upload",
		body:        body,
		contentType: contentType,
		fallback:    "Upload failed",
	}, &res); err != nil {
		return nil, err
	}

	if len(res.Uploaded) < len(files) {
		return nil, &RequestError{
			StatusCode: http.StatusCreated,
			Method:     http.MethodPost,
			Path:       "/wardrobe",
			Message:    fmt.Sprintf("accepted %d of %d files", len(res.Uploaded), len(files)),
			Err:        ErrPartialUpload,
		}
	}

	out := make([]WardrobeItem, len(res.Uploaded))
	for i, item := range res.Uploaded {
		out[i] = MapWardrobeItem(item)
	}
	return out, nil
}

// Delete removes an item. It reports false without an error when the
// backend answers with any well-formed failure such as 404. Transport
// failures and 401 are returned as errors.
func (s *WardrobeService) Delete(ctx context.Context, id int64) (bool, error) {
	err := s.client.do(ctx, request{
		method:   http.MethodDelete,
		path:     itemPath(id),
		endpoint: "wardrobe_delete",
	}, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrRequest) {
		s.client.logger.Debug("delete rejected", slog.Int64("id", id), slog.String("error", err.Error()))
		return false, nil
	}
	return false, err
}

func itemPath(id int64) string {
	return "/wardrobe/" + strconv.FormatInt(id, 10)
}

// encodeMultipart builds a form with files as repeated "files" parts and
// every non-empty field, in order.
func encodeMultipart(files []File, fields []formField) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, f := range files {
		if f.Content == nil {
			return nil, "", NewValidationError("files", fmt.Sprintf("file %d has no content", i))
		}
		name := f.Name
		if name == "" {
			name = "file" + strconv.Itoa(i)
		}
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
	}

	for _, fld := range fields {
		if fld.value == "" {
			continue
		}
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", fld.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

type formField struct {
	name  string
	value string
}
