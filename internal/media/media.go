// Package media stores post images with a third-party media service.
//
// Two drivers exist: Cloudinary (hosted, resizes on upload) and any
// S3-compatible object store via minio-go. Both satisfy Uploader.
package media

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/social-backend/internal/apperror"
)

// MaxImageSize caps an uploaded image at 5 MiB.
const MaxImageSize = 5 << 20

// Folder groups post images in the media store.
const Folder = "social_media_posts"

// Asset identifies an uploaded image. URL is public; ID is what Delete takes.
type Asset struct {
	URL string
	ID  string
}

// Uploader stores and removes images.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (Asset, error)
	Delete(ctx context.Context, id string) error
}

// DetectImage sniffs data and returns its content type, rejecting anything
// that is not an image or exceeds MaxImageSize. The declared content type of
// the multipart part is not trusted.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperror.ValidationFailed("image", "image is empty")
	}
	if len(data) > MaxImageSize {
		return "", apperror.ValidationFailed("image", "image must be 5MB or smaller")
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", apperror.ValidationFailed("image", "only image files are allowed")
	}
	return ct, nil
}

// extension maps the image content types we sniff to file suffixes.
func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ""
}
