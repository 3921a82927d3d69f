// Package cas archives emitted training files by content. Every artifact
// is stored once under its SHA-256 hash, with a BLAKE3 pointer so that a
// run record can be resolved from either digest.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// ErrBlobNotFound is returned when no artifact has the given hash.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash is not 64 lowercase hex digits.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a directory of content-addressed artifacts.
type Store struct {
	root string
}

type blake3Pointer struct {
	SHA256 string `json:"sha256"`
}

// NewStore opens or creates a store rooted at root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{"sha256", "blake3"} {
		if err := os.MkdirAll(filepath.Join(root, "blobs", dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores data and returns its fingerprint. Storing the same content
// twice is a no-op.
func (s *Store) Put(data []byte) (Fingerprint, error) {
	fp := Sum(data)

	blobPath := s.blobPath(fp.SHA256)
	if _, err := os.Stat(blobPath); err != nil {
		if err := writeAtomic(blobPath, data); err != nil {
			return Fingerprint{}, fmt.Errorf("failed to write blob: %w", err)
		}
	}

	pointerPath := s.pointerPath(fp.BLAKE3)
	if _, err := os.Stat(pointerPath); err != nil {
		pointer, err := json.Marshal(blake3Pointer{SHA256: fp.SHA256})
		if err != nil {
			return Fingerprint{}, fmt.Errorf("failed to marshal pointer: %w", err)
		}
		if err := writeAtomic(pointerPath, pointer); err != nil {
			return Fingerprint{}, fmt.Errorf("failed to write pointer: %w", err)
		}
	}
	return fp, nil
}

// PutFile archives the file at path.
func (s *Store) PutFile(path string) (Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Put(data)
}

// Get returns the artifact with the given SHA-256 hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// GetByBlake3 resolves a BLAKE3 hash to its artifact.
func (s *Store) GetByBlake3(hash string) ([]byte, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrInvalidHash
	}
	raw, err := os.ReadFile(s.pointerPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read pointer: %w", err)
	}
	var pointer blake3Pointer
	if err := json.Unmarshal(raw, &pointer); err != nil {
		return nil, fmt.Errorf("failed to parse pointer: %w", err)
	}
	return s.Get(pointer.SHA256)
}

// Has reports whether an artifact with the given SHA-256 hash exists.
func (s *Store) Has(hash string) bool {
	if !hashPattern.MatchString(hash) {
		return false
	}
	_, err := os.Stat(s.blobPath(hash))
	return err == nil
}

// Verify re-reads an artifact and checks both digests.
func (s *Store) Verify(fp Fingerprint) error {
	data, err := s.Get(fp.SHA256)
	if err != nil {
		return err
	}
	if got := Blake3Hash(data); got != fp.BLAKE3 {
		return fmt.Errorf("blake3 mismatch for %s: got %s", fp.SHA256, got)
	}
	return nil
}

// blobPath is <root>/blobs/sha256/<first2>/<hash>.
func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, "blobs", "sha256", hash[:2], hash)
}

// pointerPath is <root>/blobs/blake3/<first2>/<hash>.json.
func (s *Store) pointerPath(hash string) string {
	return filepath.Join(s.root, "blobs", "blake3", hash[:2], hash+".json")
}

// writeAtomic writes data to a temp file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
