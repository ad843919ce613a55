// Package storage selects a blob store backend from a storage URI.
// The agent archives page snapshots through this abstraction so the
// application stays independent of the concrete backend (Google Cloud
// Storage, the local filesystem, or process memory).
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"

	"llmrank/internal/intel"
	"llmrank/internal/storage/gcs"
	"llmrank/internal/storage/local"
	"llmrank/internal/storage/memory"
)

// Open returns the blob store for a storage URI. Supported schemes are
// gs://bucket, file:///base/dir and memory://. An empty URI selects the
// in-memory store. The returned close function releases any client the
// backend holds and must be called on shutdown.
func Open(ctx context.Context, uri string) (intel.BlobStore, func() error, error) {
	noop := func() error { return nil }

	if strings.TrimSpace(uri) == "" {
		return memory.NewBlobStore(), noop, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("parse storage uri: %w", err)
	}

	switch u.Scheme {
	case "gs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: u.Host})
		if err != nil {
			closeErr := client.Close()
			if closeErr != nil {
				return nil, nil, fmt.Errorf("gcs blob store init failed: %w (close client: %v)", err, closeErr)
			}
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return store, client.Close, nil
	case "file":
		store, err := local.New(local.Config{BaseDir: filepath.Join(u.Host, u.Path)})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, noop, nil
	case "memory":
		return memory.NewBlobStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}
