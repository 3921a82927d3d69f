package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/internal/validation"
)

// BundleWriter streams files into a tar bundle. The compression follows the
// destination extension: .tar.xz, .tar.gz or plain .tar.
type BundleWriter struct {
	file       *os.File
	compressor io.WriteCloser
	tw         *tar.Writer
	baseDir    string
	modTime    time.Time
	names      map[string]bool
}

// NewBundleWriter creates dstPath. Entries are stored under baseDir; an
// empty baseDir is derived from the destination name.
func NewBundleWriter(dstPath, baseDir string) (*BundleWriter, error) {
	ft := validation.FileTypeFromExtension(dstPath)
	if !ft.IsBundle() {
		return nil, errors.NewUnsupported("bundle", fmt.Sprintf("%s is not a .tar, .tar.gz or .tar.xz name", dstPath))
	}
	if baseDir == "" {
		baseDir = BundleID(filepath.Base(dstPath))
	}
	if err := validation.ValidateFilename(baseDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, errors.NewIO("create directory", filepath.Dir(dstPath), err)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return nil, errors.NewIO("create", dstPath, err)
	}

	bw := &BundleWriter{file: f, baseDir: baseDir, modTime: time.Now(), names: make(map[string]bool)}
	var w io.Writer = f
	switch ft {
	case validation.FileTypeTarXZ:
		xzw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, errors.NewIO("xz writer", dstPath, err)
		}
		bw.compressor = xzw
		w = xzw
	case validation.FileTypeTarGZ:
		gzw := gzip.NewWriter(f)
		bw.compressor = gzw
		w = gzw
	}
	bw.tw = tar.NewWriter(w)
	return bw, nil
}

// Add writes one file. Names are flat; duplicates are rejected.
func (bw *BundleWriter) Add(name string, data []byte) error {
	if err := validation.ValidateFilename(name); err != nil {
		return err
	}
	if bw.names[name] {
		return errors.NewValidation("name", fmt.Sprintf("duplicate bundle entry %q", name))
	}
	bw.names[name] = true

	hdr := &tar.Header{
		Name:     bw.baseDir + "/" + name,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  bw.modTime,
		Typeflag: tar.TypeReg,
	}
	if err := bw.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := bw.tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// AddFile copies a file from disk under its base name.
func (bw *BundleWriter) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIO("read", path, err)
	}
	return bw.Add(filepath.Base(path), data)
}

// Close flushes the tar stream, the compressor and the file, in that
// order.
func (bw *BundleWriter) Close() error {
	err := bw.tw.Close()
	if bw.compressor != nil {
		if cerr := bw.compressor.Close(); err == nil {
			err = cerr
		}
	}
	if ferr := bw.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// CreateBundle packs every regular file directly inside srcDir.
func CreateBundle(srcDir, dstPath string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.NewIO("read directory", srcDir, err)
	}
	bw, err := NewBundleWriter(dstPath, "")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := bw.AddFile(filepath.Join(srcDir, e.Name())); err != nil {
			bw.Close()
			return err
		}
	}
	return bw.Close()
}
