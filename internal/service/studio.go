package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/set-night/mindvoice/internal/domain"
)

// ImageCombiner merges several pictures under one instruction.
type ImageCombiner interface {
	CombineImages(ctx context.Context, prompt string, images []domain.Blob) (domain.Blob, error)
}

// Studio combines previously stored pictures into a new one. It does not
// touch sessions.
type Studio struct {
	combiner ImageCombiner
	media    MediaStore
}

func NewStudio(combiner ImageCombiner, media MediaStore) *Studio {
	return &Studio{combiner: combiner, media: media}
}

// Combine loads refs, asks the backend for a combined image and stores it,
// returning the new reference.
func (s *Studio) Combine(ctx context.Context, prompt string, refs []string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("combine images: empty prompt")
	}
	if len(refs) == 0 {
		return "", errors.New("combine images: no images")
	}

	images := make([]domain.Blob, 0, len(refs))
	for _, ref := range refs {
		data, mime, err := s.media.Get(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("load image %s: %w", ref, err)
		}
		images = append(images, domain.Blob{Data: data, MIMEType: mime})
	}

	out, err := s.combiner.CombineImages(ctx, prompt, images)
	if err != nil {
		return "", err
	}
	ref, err := s.media.Put(ctx, out.Data, out.MIMEType)
	if err != nil {
		return "", fmt.Errorf("store combined image: %w", err)
	}
	slog.Info("images combined", "inputs", len(refs), "ref", ref)
	return ref, nil
}
