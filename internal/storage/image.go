package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// MaxImageSize bounds uploads to 5MB.
const MaxImageSize = 5 * 1024 * 1024

// variantWidths maps derived size names to their bounding box.
var variantWidths = map[string]int{
	"large":     1200,
	"medium":    600,
	"thumbnail": 300,
}

// ValidateImage checks the payload is a jpeg or png within the size limit.
func ValidateImage(payload []byte) error {
	if int64(len(payload)) > MaxImageSize {
		return fmt.Errorf("image exceeds %dMB limit", MaxImageSize/(1024*1024))
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("not an image: %w", err)
	}
	switch format {
	case "jpeg", "png":
		return nil
	default:
		return fmt.Errorf("image format %s not allowed (only jpeg/png)", format)
	}
}

// UploadImage validates the payload, derives the configured sizes, uploads
// the original plus each derived size, and returns a size -> URL map. The
// "original" key always points at the untouched upload.
func (s *MediaStore) UploadImage(ctx context.Context, name string, payload []byte) (map[string]string, error) {
	if err := ValidateImage(payload); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}

	prefix := fmt.Sprintf("images/%s", uuid.NewString())
	urls := make(map[string]string, len(variantWidths)+1)

	originalURL, err := s.put(ctx, fmt.Sprintf("%s/original_%s", prefix, name), payload, "image/jpeg")
	if err != nil {
		return nil, err
	}
	urls["original"] = originalURL

	for variant, size := range variantWidths {
		resized := imaging.Fit(img, size, size, imaging.Lanczos)
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("cannot encode %s variant: %w", variant, err)
		}
		url, err := s.put(ctx, fmt.Sprintf("%s/%s_%s", prefix, variant, name), buf.Bytes(), "image/jpeg")
		if err != nil {
			return nil, err
		}
		urls[variant] = url
	}

	return urls, nil
}
