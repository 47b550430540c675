package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Storage serves artifacts and datasets from a directory. Keys are slash-separated paths
// relative to the base directory and may not escape it.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/artifacts"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "open storage dir", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrConfiguration, "open storage dir", fmt.Errorf("%s is not a directory", abs))
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open "+key, err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &domain.ValidationError{Field: "key", Reason: "must be a relative path inside the artifact store"}
	}
	return filepath.Join(s.basePath, clean), nil
}
