package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	cerrors "github.com/FocuswithJustin/nercorpus/core/errors"
)

const sampleXML = `<corpus><document name="d1"/></corpus>`

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	gw.Close()
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := xw.Write(data); err != nil {
		t.Fatalf("xz: %v", err)
	}
	xw.Close()
	return buf.Bytes()
}

// createTestTarXz builds a bundle by hand, including a directory entry
// that iteration must skip.
func createTestTarXz(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "test.tar.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()

	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	tw := tar.NewWriter(xw)

	if err := tw.WriteHeader(&tar.Header{Name: "test/", Mode: 0755, Typeflag: tar.TypeDir}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, e := range []struct{ name, body string }{
		{"test/a.xml", sampleXML},
		{"test/b.semdoc", "<semdoc/>"},
	} {
		if err := tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0644,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	tw.Close()
	xw.Close()
	return path
}

// TestOpen verifies single files are decompressed by content.
func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"plain", "doc.xml", []byte(sampleXML)},
		{"gzip", "doc.xml.gz", gzipBytes(t, []byte(sampleXML))},
		{"xz", "doc.xml.xz", xzBytes(t, []byte(sampleXML))},
		{"xz without extension", "doc.bin", xzBytes(t, []byte(sampleXML))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, tt.file), tt.data)
			rc, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != sampleXML {
				t.Errorf("content = %q, want %q", got, sampleXML)
			}
		})
	}
}

// TestOpenErrors verifies missing files, bundles and corrupt streams.
func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(filepath.Join(dir, "missing.xml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}

	bundle := createTestTarXz(t, dir)
	if _, err := Open(bundle); !errors.Is(err, cerrors.ErrUnsupported) {
		t.Errorf("bundle error = %v, want ErrUnsupported", err)
	}

	corrupt := writeFile(t, filepath.Join(dir, "bad.xml.gz"), []byte{0x1f, 0x8b, 0x00})
	if _, err := Open(corrupt); err == nil {
		t.Error("expected error for truncated gzip header")
	}

	if _, err := Open(""); !errors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("empty path error = %v, want ErrInvalidInput", err)
	}
}

// TestReaderIterate verifies only regular files reach the visitor and
// that stopping early works.
func TestReaderIterate(t *testing.T) {
	path := createTestTarXz(t, t.TempDir())

	var names []string
	if err := IterateBundle(path, func(h *tar.Header, _ io.Reader) (bool, error) {
		names = append(names, h.Name)
		return false, nil
	}); err != nil {
		t.Fatalf("IterateBundle() error = %v", err)
	}
	if want := []string{"test/a.xml", "test/b.semdoc"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	count := 0
	if err := IterateBundle(path, func(*tar.Header, io.Reader) (bool, error) {
		count++
		return true, nil
	}); err != nil {
		t.Fatalf("IterateBundle() error = %v", err)
	}
	if count != 1 {
		t.Errorf("visited %d entries after stop, want 1", count)
	}

	boom := errors.New("boom")
	if err := IterateBundle(path, func(*tar.Header, io.Reader) (bool, error) {
		return false, boom
	}); !errors.Is(err, boom) {
		t.Errorf("visitor error = %v, want boom", err)
	}
}

// TestReadFile verifies lookups with and without the leading directory.
func TestReadFile(t *testing.T) {
	path := createTestTarXz(t, t.TempDir())

	for _, name := range []string{"a.xml", "test/a.xml"} {
		got, err := ReadFile(path, name)
		if err != nil {
			t.Fatalf("ReadFile(%q) error = %v", name, err)
		}
		if string(got) != sampleXML {
			t.Errorf("ReadFile(%q) = %q", name, got)
		}
	}

	if _, err := ReadFile(path, "missing.xml"); !errors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("missing entry error = %v, want ErrNotFound", err)
	}

	names, err := FindFiles(path, func(n string) bool { return strings.HasSuffix(n, ".semdoc") })
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"test/b.semdoc"}) {
		t.Errorf("FindFiles() = %v", names)
	}
}

// TestEntryName verifies leading directories are stripped.
func TestEntryName(t *testing.T) {
	tests := map[string]string{
		"bundle/doc.xml":   "doc.xml",
		"./bundle/doc.xml": "doc.xml",
		"doc.xml":          "doc.xml",
		"a/b/c.xml":        "b/c.xml",
	}
	for in, want := range tests {
		if got := EntryName(in); got != want {
			t.Errorf("EntryName(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestBundleRoundTrip verifies each compression writes a bundle that
// reads back with a verified manifest.
func TestBundleRoundTrip(t *testing.T) {
	for _, ext := range []string{".tar.xz", ".tar.gz", ".tar"} {
		t.Run(ext, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "out", "combined"+ext)
			bw, err := NewBundleWriter(dst, "")
			if err != nil {
				t.Fatalf("NewBundleWriter() error = %v", err)
			}
			m := NewManifest("run-1", "corpus combine")
			if err := bw.AddWithManifest(m, "a.2layers.xml", []byte(sampleXML)); err != nil {
				t.Fatalf("AddWithManifest() error = %v", err)
			}
			if err := bw.Add("a.2layers.xml", nil); !errors.Is(err, cerrors.ErrInvalidInput) {
				t.Errorf("duplicate entry error = %v, want ErrInvalidInput", err)
			}
			if err := bw.WriteManifest(m); err != nil {
				t.Fatalf("WriteManifest() error = %v", err)
			}
			if err := bw.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			got, err := ReadManifest(dst)
			if err != nil {
				t.Fatalf("ReadManifest() error = %v", err)
			}
			if got.RunID != "run-1" || len(got.Files) != 1 {
				t.Errorf("manifest = %+v", got)
			}
			bad, err := VerifyBundle(dst)
			if err != nil {
				t.Fatalf("VerifyBundle() error = %v", err)
			}
			if len(bad) != 0 {
				t.Errorf("VerifyBundle() = %v, want none", bad)
			}

			names, err := FindFiles(dst, func(string) bool { return true })
			if err != nil {
				t.Fatalf("FindFiles() error = %v", err)
			}
			if len(names) == 0 || !strings.HasPrefix(names[0], "combined/") {
				t.Errorf("entries = %v, want combined/ prefix", names)
			}
		})
	}
}

// TestVerifyBundleReportsMissing verifies files listed but absent are
// reported.
func TestVerifyBundleReportsMissing(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "b.tar.gz")
	bw, err := NewBundleWriter(dst, "b")
	if err != nil {
		t.Fatalf("NewBundleWriter() error = %v", err)
	}
	m := NewManifest("", "")
	if err := bw.AddWithManifest(m, "kept.xml", []byte("x")); err != nil {
		t.Fatal(err)
	}
	m.Files["ghost.xml"] = m.Files["kept.xml"]
	if err := bw.WriteManifest(m); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}

	bad, err := VerifyBundle(dst)
	if err != nil {
		t.Fatalf("VerifyBundle() error = %v", err)
	}
	if !reflect.DeepEqual(bad, []string{"ghost.xml"}) {
		t.Errorf("VerifyBundle() = %v, want [ghost.xml]", bad)
	}
}

// TestNewBundleWriterErrors verifies destination and name validation.
func TestNewBundleWriterErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewBundleWriter(filepath.Join(dir, "out.zip"), ""); !errors.Is(err, cerrors.ErrUnsupported) {
		t.Errorf("zip destination error = %v, want ErrUnsupported", err)
	}

	bw, err := NewBundleWriter(filepath.Join(dir, "ok.tar"), "ok")
	if err != nil {
		t.Fatalf("NewBundleWriter() error = %v", err)
	}
	defer bw.Close()
	if err := bw.Add("../escape.xml", nil); err == nil {
		t.Error("expected error for name with separator")
	}
}

// TestCreateBundle verifies a directory is packed flat.
func TestCreateBundle(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.xml"), []byte("a"))
	writeFile(t, filepath.Join(src, "b.xml"), []byte("b"))
	if err := os.Mkdir(filepath.Join(src, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "corpus.tar.xz")
	if err := CreateBundle(src, dst); err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}
	got, err := ReadFile(dst, "b.xml")
	if err != nil || string(got) != "b" {
		t.Errorf("ReadFile(b.xml) = %q, %v", got, err)
	}
	names, _ := FindFiles(dst, func(string) bool { return true })
	if len(names) != 2 {
		t.Errorf("entries = %v, want 2", names)
	}
}

// TestBundleID verifies extension stripping.
func TestBundleID(t *testing.T) {
	tests := map[string]string{
		"run.tar.xz": "run",
		"run.tar.gz": "run",
		"run.tgz":    "run",
		"run.tar":    "run",
		"run.xml":    "run.xml",
	}
	for in, want := range tests {
		if got := BundleID(in); got != want {
			t.Errorf("BundleID(%q) = %q, want %q", in, got, want)
		}
	}
}
