package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bookvision/bookvision/core"
)

// ImageStore persists rendered page previews on the local filesystem,
// one directory per book with page_N.png files inside.
type ImageStore struct {
	baseDir string
}

// NewImageStore creates a store rooted at baseDir. The directory is
// created on first write.
func NewImageStore(baseDir string) *ImageStore {
	return &ImageStore{baseDir: baseDir}
}

// Put stores the rendered image for one page, overwriting any previous
// preview.
func (s *ImageStore) Put(bookID string, pageNumber int, image []byte) error {
	if err := core.ValidateBookID(bookID); err != nil {
		return err
	}
	if pageNumber < 1 {
		return fmt.Errorf("%w: page %d", core.ErrInvalidPage, pageNumber)
	}
	dir := filepath.Join(s.baseDir, bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.pagePath(bookID, pageNumber), image, 0o644)
}

// Get returns the stored preview for one page, or ErrImageNotFound.
func (s *ImageStore) Get(bookID string, pageNumber int) ([]byte, error) {
	if err := core.ValidateBookID(bookID); err != nil {
		return nil, err
	}
	if pageNumber < 1 {
		return nil, fmt.Errorf("%w: page %d", core.ErrInvalidPage, pageNumber)
	}
	data, err := os.ReadFile(s.pagePath(bookID, pageNumber))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: book %q page %d", ErrImageNotFound, bookID, pageNumber)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Has reports whether a preview exists for the page.
func (s *ImageStore) Has(bookID string, pageNumber int) bool {
	if core.ValidateBookID(bookID) != nil || pageNumber < 1 {
		return false
	}
	_, err := os.Stat(s.pagePath(bookID, pageNumber))
	return err == nil
}

// RemoveBook deletes all stored previews for the book.
func (s *ImageStore) RemoveBook(bookID string) error {
	if err := core.ValidateBookID(bookID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.baseDir, bookID))
}

func (s *ImageStore) pagePath(bookID string, pageNumber int) string {
	return filepath.Join(s.baseDir, bookID, fmt.Sprintf("page_%d.png", pageNumber))
}
