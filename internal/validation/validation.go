// Package validation checks user-supplied paths and detects the container
// format of corpus inputs before they are handed to a reader.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/nercorpus/core/errors"
)

const (
	// MaxFileSize is the largest single corpus file accepted (256 MB).
	MaxFileSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// SniffLength is how many leading bytes DetectFileType needs.
	SniffLength = 512
)

// Common validation errors. All of them match errors.ErrInvalidInput.
var (
	ErrPathTraversal    = fmt.Errorf("path traversal detected: %w", errors.ErrInvalidInput)
	ErrInvalidFilename  = fmt.Errorf("invalid filename: %w", errors.ErrInvalidInput)
	ErrPathTooLong      = fmt.Errorf("path too long: %w", errors.ErrInvalidInput)
	ErrFilenameTooLong  = fmt.Errorf("filename too long: %w", errors.ErrInvalidInput)
	ErrInvalidCharacter = fmt.Errorf("invalid character in path: %w", errors.ErrInvalidInput)
	ErrEmptyPath        = fmt.Errorf("path cannot be empty: %w", errors.ErrInvalidInput)
)

// SanitizePath cleans userPath and ensures it stays inside baseDir. The
// returned path is relative to baseDir.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return cleanPath, nil
}

// ValidateFilename rejects names with separators, control characters or
// a leading hyphen.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidatePath checks a path without a base directory.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// SanitizeFilename turns an arbitrary name, such as a tar entry path, into
// a flat filename.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	var cleaned strings.Builder
	for _, r := range filename {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

// FileType is a detected input container or content type.
type FileType string

const (
	FileTypeTarXZ FileType = "tar.xz"
	FileTypeTarGZ FileType = "tar.gz"
	FileTypeTar   FileType = "tar"
	FileTypeGzip  FileType = "gzip"
	FileTypeXZ    FileType = "xz"

	FileTypeSQLite FileType = "sqlite"

	FileTypeXML  FileType = "xml"
	FileTypeText FileType = "text"

	FileTypeUnknown FileType = "unknown"
)

// IsCompressed reports whether t needs a decompressor.
func (t FileType) IsCompressed() bool {
	switch t {
	case FileTypeGzip, FileTypeXZ, FileTypeTarGZ, FileTypeTarXZ:
		return true
	}
	return false
}

// IsBundle reports whether t is a tar bundle of several files.
func (t FileType) IsBundle() bool {
	return t == FileTypeTar || t == FileTypeTarGZ || t == FileTypeTarXZ
}

var magicBytes = []struct {
	fileType FileType
	magic    []byte
	offset   int
}{
	{FileTypeTar, []byte("ustar"), 257},
	{FileTypeGzip, []byte{0x1f, 0x8b}, 0},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	{FileTypeSQLite, []byte("SQLite format 3"), 0},
}

// ValidateFileType reads the magic bytes of reader and checks them against
// the extension of filename. Compressed single files and bundles are
// reported by their container type.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, SniffLength)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detectedType := DetectFileType(buf)
	expectedType := FileTypeFromExtension(filename)

	switch {
	case expectedType == FileTypeTarXZ && detectedType == FileTypeXZ:
		return FileTypeTarXZ, nil
	case expectedType == FileTypeTarGZ && detectedType == FileTypeGzip:
		return FileTypeTarGZ, nil
	case detectedType == expectedType:
		return detectedType, nil
	}

	if detectedType == FileTypeUnknown && (expectedType == FileTypeXML || expectedType == FileTypeText) {
		if isLikelyText(buf) {
			return expectedType, nil
		}
		return FileTypeUnknown, fmt.Errorf("%w: %s does not look like text", errors.ErrInvalidInput, filename)
	}

	if detectedType != FileTypeUnknown && expectedType != FileTypeUnknown {
		return FileTypeUnknown, fmt.Errorf("%w: file type mismatch: extension suggests %s but content is %s",
			errors.ErrInvalidInput, expectedType, detectedType)
	}
	if detectedType == FileTypeUnknown {
		return expectedType, nil
	}
	return detectedType, nil
}

// DetectFileType detects a type from leading bytes only. Plain XML and text
// have no magic and report FileTypeUnknown.
func DetectFileType(buf []byte) FileType {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) {
			if bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				return sig.fileType
			}
		}
	}
	return FileTypeUnknown
}

// FileTypeFromExtension maps a filename to the type its extension claims.
func FileTypeFromExtension(filename string) FileType {
	lower := strings.ToLower(filename)

	if strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz") {
		return FileTypeTarXZ
	}
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return FileTypeTarGZ
	}

	switch filepath.Ext(lower) {
	case ".tar":
		return FileTypeTar
	case ".xz":
		return FileTypeXZ
	case ".gz":
		return FileTypeGzip
	case ".sqlite", ".db", ".sqlite3":
		return FileTypeSQLite
	case ".xml", ".sgml", ".semdoc", ".enamex":
		return FileTypeXML
	case ".txt", ".tsv", ".conll", ".iob":
		return FileTypeText
	default:
		return FileTypeUnknown
	}
}

// isLikelyText reports whether more than 95% of buf is printable.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
