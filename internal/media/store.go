package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/mindvoice/internal/domain"
)

const refPrefix = "media/"

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
}

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
}

// Store hands out references of the form "media/<uuid>.<ext>" for image
// bytes kept in a FileStore.
type Store struct {
	files FileStore
}

func NewStore(files FileStore) *Store {
	return &Store{files: files}
}

// Put saves data and returns its reference.
func (s *Store) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("put media: empty payload")
	}
	ext, ok := extByMIME[strings.ToLower(mimeType)]
	if !ok {
		ext = ".png"
		mimeType = "image/png"
	}
	name := uuid.NewString() + ext
	if err := s.files.Write(ctx, name, mimeType, data); err != nil {
		return "", fmt.Errorf("put media: %w", err)
	}
	return refPrefix + name, nil
}

// Get returns the bytes and MIME type behind ref.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, string, error) {
	name, err := nameOf(ref)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.files.Read(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", domain.ErrMediaNotFound
		}
		return nil, "", fmt.Errorf("get media: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	return data, MIMEType(ref), nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	name, err := nameOf(ref)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// MIMEType derives the content type from the reference extension.
func MIMEType(ref string) string {
	if m, ok := mimeByExt[strings.ToLower(path.Ext(ref))]; ok {
		return m
	}
	return "image/png"
}

func nameOf(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid media reference %q: %w", ref, domain.ErrMediaNotFound)
	}
	return name, nil
}
