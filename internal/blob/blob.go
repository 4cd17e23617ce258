package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the durable artifact sink. Put writes the object and returns
// a stable URL; the core persists only that URL, never the bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Dir stores blobs under a local directory, served from a static base
// URL. Deployments that use the platform object store swap in their own
// Store; this adapter keeps a single process self-contained.
type Dir struct {
	root    string
	baseURL string
}

func NewDir(root, baseURL string) *Dir {
	return &Dir{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *Dir) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}

	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return d.baseURL + "/" + key, nil
}
