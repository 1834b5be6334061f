// Package storage is the key-addressed blob store behind photos, clips and
// exports. Paths are category/owner/filename; the backend (local disk or
// Supabase Storage) is chosen once at startup.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/google/uuid"
)

type Store interface {
	// Save persists data under category/ownerID/filename and returns the path.
	Save(ctx context.Context, data []byte, category string, ownerID uuid.UUID, filename string) (string, error)

	// Read fetches the full content at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the blob at path. Deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error

	// URL returns a client-fetchable URL for the blob.
	URL(path string) string

	// LocalPath materializes the blob as a filesystem path for subprocess
	// consumers. The cleanup func must be called when the path is no longer
	// needed; for local backends it is a no-op.
	LocalPath(ctx context.Context, path string) (string, func(), error)
}

const (
	CategoryOriginals = "originals"
	CategoryStyled    = "styled"
	CategoryVideos    = "videos"
	CategoryExports   = "exports"
)

func blobPath(category string, ownerID uuid.UUID, filename string) string {
	return path.Join(category, ownerID.String(), filename)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// RandomFilename builds a collision-free filename with the given extension.
func RandomFilename(ext string) string {
	return fmt.Sprintf("%s%s", uuid.New(), ext)
}
