package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrImageTooLarge    = errors.New("image too large")
)

const (
	DefaultMaxImageSize = 2 << 20 // 2MB
	maxSlugLen          = 60
)

// allowedImageTypes maps detected MIME types to file extensions.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Image describes a stored upload.
type Image struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Images validates uploads and stores them through a Provider.
type Images struct {
	provider Provider
	maxSize  int64
	now      func() time.Time
}

func NewImages(provider Provider, maxSize int64) *Images {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return &Images{provider: provider, maxSize: maxSize, now: time.Now}
}

// MaxSize is the largest accepted image in bytes.
func (i *Images) MaxSize() int64 {
	return i.maxSize
}

// Upload reads an image from r, checks its real type and size, and stores it
// under a key derived from filename.
func (i *Images) Upload(ctx context.Context, filename string, r io.Reader) (*Image, error) {
	data, err := ReadLimited(r, i.maxSize)
	if err != nil {
		return nil, err
	}
	contentType, ext, err := DetectImage(data)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(i.now(), filename, ext)
	url, err := i.provider.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store image %s: %w", key, err)
	}
	return &Image{URL: url, Key: key, ContentType: contentType, Size: len(data)}, nil
}

// ReadLimited reads all of r, failing with ErrImageTooLarge past max bytes.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrImageTooLarge, max)
	}
	return data, nil
}

// DetectImage sniffs the content type from the bytes themselves. The client's
// Content-Type header is never trusted.
func DetectImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	mt := mimetype.Detect(data)
	ext, ok := allowedImageTypes[mt.String()]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}
	return mt.String(), ext, nil
}

// ObjectKey names an upload <unix-ms>-<slug>.<ext>, the slug taken from the
// base of the original filename.
func ObjectKey(now time.Time, filename, ext string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), slug(base), ext)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	if out == "" {
		return "image"
	}
	return out
}
