// Package media stores post images in Cloud Storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageBytes caps an uploaded image.
const MaxImageBytes = 10 << 20

var (
	ErrNotAnImage    = errors.New("file is not a supported image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrEmptyImage    = errors.New("image is empty")
)

var allowed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/gif":  true,
}

// Image is an uploaded object.
type Image struct {
	Path        string
	URL         string
	ContentType string
	Size        int
}

// ImageStore writes post images into one bucket.
type ImageStore struct {
	bucket *storage.BucketHandle
	name   string
}

// NewImageStore creates an ImageStore for the named bucket.
func NewImageStore(bucket *storage.BucketHandle, name string) *ImageStore {
	return &ImageStore{bucket: bucket, name: name}
}

// Detect validates data and returns its content type and file extension.
func Detect(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", "", ErrImageTooLarge
	}
	mt := mimetype.Detect(data)
	ct := strings.SplitN(mt.String(), ";", 2)[0]
	if !allowed[ct] {
		return "", "", fmt.Errorf("%w: %s", ErrNotAnImage, ct)
	}
	return ct, mt.Extension(), nil
}

// ObjectPath is where a user's post image lives inside the bucket.
func ObjectPath(userID, id, ext string) string {
	return path.Join("posts", userID, id+ext)
}

// PublicURL is the download URL of an object.
func PublicURL(bucket, object string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + object}).String()
}

// Upload validates and stores a post image.
func (s *ImageStore) Upload(ctx context.Context, userID string, data []byte) (*Image, error) {
	ct, ext, err := Detect(data)
	if err != nil {
		return nil, err
	}
	object := ObjectPath(userID, uuid.NewString(), ext)

	w := s.bucket.Object(object).NewWriter(ctx)
	w.ContentType = ct
	w.CacheControl = "public, max-age=86400"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize image upload: %w", err)
	}

	return &Image{Path: object, URL: PublicURL(s.name, object), ContentType: ct, Size: len(data)}, nil
}

// Delete removes a stored image. Missing objects are not an error.
func (s *ImageStore) Delete(ctx context.Context, object string) error {
	err := s.bucket.Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// ObjectFromURL recovers the object path from a URL built by PublicURL.
func ObjectFromURL(bucket, rawURL string) (string, bool) {
	prefix := PublicURL(bucket, "")
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	object := strings.TrimPrefix(rawURL, prefix)
	return object, object != ""
}

// DeleteURL removes the image behind a URL returned by Upload. URLs pointing
// elsewhere are ignored.
func (s *ImageStore) DeleteURL(ctx context.Context, rawURL string) error {
	object, ok := ObjectFromURL(s.name, rawURL)
	if !ok {
		return nil
	}
	return s.Delete(ctx, object)
}
