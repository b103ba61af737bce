// Package archive provides random access to the named entries of a scene
// archive. A scene archive is a read-only zip whose paths are absolute
// within the archive; the required scene.wasm entry and any shader or
// image blobs are read as whole entries.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// SceneModuleEntry is the archive entry every scene archive must contain.
const SceneModuleEntry = "scene.wasm"

// ErrMissingEntry is returned by Read when the archive has no entry with
// the requested path.
var ErrMissingEntry = errors.New("archive: no such entry")

// Archive is an open scene archive.
type Archive struct {
	path    string
	rc      *zip.ReadCloser
	entries map[string]*zip.File
}

// Open opens the zip at path in read-only mode and indexes its entries.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	entries := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		entries[f.Name] = f
	}
	return &Archive{path: path, rc: rc, entries: entries}, nil
}

// Read decompresses the whole entry at the given path. Entries whose
// decompressed size is not recorded in the archive are rejected.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.entries[path]
	if !ok {
		return nil, fmt.Errorf("archive: entry %s in %s: %w", path, a.path, ErrMissingEntry)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open entry %s: %w", path, err)
	}
	defer r.Close()

	if f.UncompressedSize64 == 0 {
		// An entry recorded as empty must decompress to nothing; data past
		// the recorded size means the archive carries no usable size.
		if _, err := io.ReadFull(r, make([]byte, 1)); err != io.EOF {
			return nil, fmt.Errorf("archive: decompressed size is unknown for %s, unsupported", path)
		}
		return []byte{}, nil
	}

	data := make([]byte, f.UncompressedSize64)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("archive: read entry %s: %w", path, err)
	}
	return data, nil
}

// Has reports whether the archive contains an entry with the given path.
func (a *Archive) Has(path string) bool {
	_, ok := a.entries[path]
	return ok
}

// Close closes the underlying zip file.
func (a *Archive) Close() error {
	if a.rc == nil {
		return nil
	}
	err := a.rc.Close()
	a.rc = nil
	return err
}
