package fakebackend

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 32 << 20

var allowedExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}

type item struct {
	ID          int64
	UserID      int64
	Filename    string
	Description string
	CreatedAt   float64
	content     []byte
}

type itemJSON struct {
	ID          int64   `json:"id"`
	Filename    string  `json:"filename"`
	FileURL     string  `json:"file_url"`
	Description string  `json:"description"`
	CreatedAt   float64 `json:"created_at"`
	UserID      int64   `json:"user_id"`
}

func (it *item) toJSON() itemJSON {
	return itemJSON{
		ID:          it.ID,
		Filename:    it.Filename,
		FileURL:     fmt.Sprintf("/wardrobe/%d/file", it.ID),
		Description: it.Description,
		CreatedAt:   it.CreatedAt,
		UserID:      it.UserID,
	}
}

// extension returns the lower-cased extension of name if it is allowed.
func extension(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", false
	}
	ext := strings.ToLower(name[i+1:])
	return ext, allowedExtensions[ext]
}

// describe produces the canned analysis for an uploaded file:
// "TYPE: <basename>".
func describe(name string) string {
	base := filepath.Base(name)
	return "TYPE: " + strings.TrimSuffix(base, filepath.Ext(base))
}

// uploadedFiles returns the "files" parts, or the single "file" part.
func uploadedFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
		if len(files) > 1 {
			files = files[:1]
		}
	}
	return files
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleUploadWardrobe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	files := uploadedFiles(r)
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	userID := currentUserID(r)
	uploaded := make([]itemJSON, 0, len(files))
	for _, fh := range files {
		ext, ok := extension(fh.Filename)
		if !ok {
			continue
		}
		content, err := readPart(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read upload")
			return
		}

		s.mu.Lock()
		it := &item{
			ID:          s.nextItemID,
			UserID:      userID,
			Description: describe(fh.Filename),
			CreatedAt:   unixSeconds(s.now()),
			content:     content,
		}
		it.Filename = fmt.Sprintf("%d.%s", it.ID, ext)
		s.nextItemID++
		s.items[it.ID] = it
		s.mu.Unlock()

		uploaded = append(uploaded, it.toJSON())
	}

	writeJSON(w, http.StatusCreated, map[string]any{"uploaded": uploaded})
}

// userItems returns the caller's items, newest first.
func (s *Server) userItems(userID int64) []itemJSON {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]itemJSON, 0)
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it.toJSON())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Server) handleListWardrobe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.userItems(currentUserID(r)))
}

// ownedItem resolves the {id} URL parameter to an item of the caller.
func (s *Server) ownedItem(r *http.Request) (*item, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != currentUserID(r) {
		return nil, false
	}
	return it, true
}

func (s *Server) handleGetWardrobeItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.ownedItem(r)
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, it.toJSON())
}

func (s *Server) handleDeleteWardrobeItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.ownedItem(r)
	if !ok {
		notFound(w)
		return
	}
	s.mu.Lock()
	delete(s.items, it.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted", "id": it.ID})
}

func (s *Server) handleWardrobeFile(w http.ResponseWriter, r *http.Request) {
	it, ok := s.ownedItem(r)
	if !ok {
		notFound(w)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(it.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(it.content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(it.content)
}
