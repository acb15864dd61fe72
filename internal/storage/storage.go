// Package storage keeps optic images in a blob store and hands back the
// public URL the catalog records as optics.image_url.
package storage

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/opticfit/internal/config"
)

// Provider writes and removes objects by key.
type Provider interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
