// Package storage defines the file-system abstraction shared by the
// file-backed note store and the artifact store.
package storage

import "github.com/starford/folio/internal/models"

// Provider is the interface for file operations under a storage root.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to the root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
}
