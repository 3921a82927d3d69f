package cas

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSum verifies both digests and the size.
func TestSum(t *testing.T) {
	data := []byte("Barack\tB-PERSON\nObama\tPERSON\n")
	fp := Sum(data)

	if fp.SHA256 != Hash(data) || fp.BLAKE3 != Blake3Hash(data) {
		t.Errorf("Sum() = %+v", fp)
	}
	if fp.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", fp.Size, len(data))
	}
	if len(fp.SHA256) != 64 || len(fp.BLAKE3) != 64 {
		t.Errorf("unexpected digest lengths: %+v", fp)
	}

	streamed, err := SumReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SumReader failed: %v", err)
	}
	if streamed != fp {
		t.Errorf("SumReader() = %+v, want %+v", streamed, fp)
	}
}

// TestPutAndGet verifies round trips through both digests.
func TestPutAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	data := []byte("<corpus><subcorpus/></corpus>")

	fp, err := store.Put(data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !store.Has(fp.SHA256) {
		t.Error("Has() should report the stored artifact")
	}

	got, err := store.Get(fp.SHA256)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("Get() = %q, %v", got, err)
	}
	got, err = store.GetByBlake3(fp.BLAKE3)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("GetByBlake3() = %q, %v", got, err)
	}
	if err := store.Verify(fp); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	again, err := store.Put(data)
	if err != nil || again != fp {
		t.Errorf("second Put() = %+v, %v", again, err)
	}
}

// TestGetErrors verifies the sentinel errors.
func TestGetErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	tests := []struct {
		name string
		hash string
		want error
	}{
		{"too short", "abc", ErrInvalidHash},
		{"uppercase", strings.Repeat("A", 64), ErrInvalidHash},
		{"missing", strings.Repeat("a", 64), ErrBlobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Get(tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
			if _, err := store.GetByBlake3(tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("GetByBlake3() error = %v, want %v", err, tt.want)
			}
		})
	}
	if store.Has("nope") {
		t.Error("Has() should reject invalid hashes")
	}
}

// TestPutFile verifies archiving from disk.
func TestPutFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	path := filepath.Join(dir, "news.train")
	if err := os.WriteFile(path, []byte("Paris\tB-LOCATION\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fp, err := store.PutFile(path)
	if err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	if fp.Size != 17 {
		t.Errorf("Size = %d, want 17", fp.Size)
	}
	if _, err := store.PutFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("PutFile should fail for a missing file")
	}
}

// TestPutRenameFailure verifies temp files are cleaned up when the final
// rename fails.
func TestPutRenameFailure(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	orig := osRename
	osRename = func(string, string) error { return errors.New("rename refused") }
	defer func() { osRename = orig }()

	if _, err := store.Put([]byte("data")); err == nil {
		t.Fatal("Put should fail when rename fails")
	}
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasPrefix(info.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
