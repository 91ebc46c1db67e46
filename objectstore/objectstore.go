// Package objectstore implements the content-addressed blob storage used
// for large storage-transaction payloads: store(bytes) -> hash,
// retrieve(hash) -> bytes. Objects are written once per distinct content
// hash under a dedicated directory, named by the lower-case hex of their
// SHA-256; a write of content that already exists is a no-op, which is what
// makes store idempotent. Adapted from the teacher's blockstore
// write-if-absent helper, generalized into its own content-addressed store.
package objectstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rubinchain/chaind/chainerr"
)

// Store is a directory-backed content-addressed object store.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a Store rooted at it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, chainerr.New(chainerr.KindObjectStore, "objectstore.open", err)
	}
	return &Store{dir: dir}, nil
}

// Store computes the SHA-256 of data, writes it to a file named by the
// lower-case hex of that hash, and returns the hash. A second Store call
// with identical content is a no-op: the existing file's on-disk content is
// left untouched (and thus so is its modification time).
func (s *Store) Store(data []byte) ([32]byte, error) {
	hash := sha256.Sum256(data)
	path := s.objectPath(hash)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		_, writeErr := f.Write(data)
		closeErr := f.Close()
		if writeErr != nil {
			_ = os.Remove(path)
			return hash, chainerr.New(chainerr.KindObjectStore, "objectstore.store", writeErr)
		}
		if closeErr != nil {
			_ = os.Remove(path)
			return hash, chainerr.New(chainerr.KindObjectStore, "objectstore.store", closeErr)
		}
		return hash, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return hash, chainerr.New(chainerr.KindObjectStore, "objectstore.store", err)
	}
	// Content-addressed: an existing file at this path is, by construction,
	// identical content. No verification read is required to preserve the
	// idempotence observable.
	return hash, nil
}

// ErrNotFound is returned by Retrieve when no object with the given hash has
// been stored.
var ErrNotFound = errors.New("objectstore: not found")

// Retrieve returns the bytes previously passed to Store for hash, or
// ErrNotFound if no such object exists.
func (s *Store) Retrieve(hash [32]byte) ([]byte, error) {
	name := hex.EncodeToString(hash[:])
	data, err := readFileFromDir(s.dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, chainerr.New(chainerr.KindObjectStore, "objectstore.retrieve", err)
	}
	return data, nil
}

func (s *Store) objectPath(hash [32]byte) string {
	return filepath.Join(s.dir, hex.EncodeToString(hash[:]))
}

// readFileFromDir reads name from dir via os.DirFS, rejecting any name that
// is not a plain base filename (no path traversal). Since name is always a
// hex-encoded hash this only ever rejects malformed input.
func readFileFromDir(dir, name string) ([]byte, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, fmt.Errorf("objectstore: invalid object name %q", name)
	}
	return fs.ReadFile(os.DirFS(dir), name)
}
