// Package archive opens corpus inputs that may be compressed (.gz, .xz) or
// packed as tar bundles (.tar, .tar.gz, .tar.xz), and writes output bundles.
package archive

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/internal/validation"
)

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sniff peeks at the leading bytes of r without consuming them.
func sniff(r *bufio.Reader) validation.FileType {
	buf, _ := r.Peek(validation.SniffLength)
	return validation.DetectFileType(buf)
}

// decompress wraps r according to its magic bytes. Uncompressed input is
// returned as is.
func decompress(r *bufio.Reader) (io.Reader, io.Closer, error) {
	switch sniff(r) {
	case validation.FileTypeXZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xzr, nil, nil
	case validation.FileTypeGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gzr, gzr, nil
	}
	return r, nil, nil
}

// Open opens a single corpus file, decompressing it when its content is
// gzip or xz. Bundles are rejected; use NewReader for those.
func Open(path string) (io.ReadCloser, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, err
	}
	if validation.FileTypeFromExtension(path).IsBundle() {
		return nil, errors.NewUnsupported("archive.Open", fmt.Sprintf("%s is a bundle", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	r, closer, err := decompress(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, errors.NewIO("decompress", path, err)
	}
	rc := &readCloser{Reader: r}
	if closer != nil {
		rc.closers = append(rc.closers, closer)
	}
	rc.closers = append(rc.closers, f)
	return rc, nil
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a tar bundle. The compression is detected from content,
// so a mislabelled .tar.gz that is really xz still opens.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	r, closer, err := decompress(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, errors.NewIO("decompress", path, err)
	}

	return &Reader{
		Reader:       tar.NewReader(r),
		file:         f,
		decompressor: closer,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all regular file entries, calling the visitor for
// each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// IterateBundle opens a bundle and iterates through its entries.
func IterateBundle(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// EntryName strips the leading directory of a bundle entry, so both
// "bundle/doc.xml" and "doc.xml" name the same file.
func EntryName(name string) string {
	name = strings.TrimPrefix(name, "./")
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// ReadFile reads a specific file from the bundle.
func ReadFile(bundlePath, filename string) ([]byte, error) {
	var content []byte
	err := IterateBundle(bundlePath, func(header *tar.Header, r io.Reader) (bool, error) {
		if EntryName(header.Name) == filename || header.Name == filename {
			var err error
			content, err = io.ReadAll(r)
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, errors.NewNotFound("bundle entry", filename)
	}
	return content, nil
}

// FindFiles returns the names of every entry matching the predicate.
func FindFiles(bundlePath string, predicate func(name string) bool) ([]string, error) {
	var names []string
	err := IterateBundle(bundlePath, func(header *tar.Header, _ io.Reader) (bool, error) {
		if predicate(header.Name) {
			names = append(names, header.Name)
		}
		return false, nil
	})
	return names, err
}
