package main

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/nercorpus/internal/archive"
	"github.com/FocuswithJustin/nercorpus/internal/validation"
)

// source is one input document, on disk or inside a bundle.
type source struct {
	name string
	path string
	data []byte
}

func (s source) open() (io.ReadCloser, error) {
	if s.data != nil {
		return io.NopCloser(bytes.NewReader(s.data)), nil
	}
	return archive.Open(s.path)
}

// stem strips compression and format extensions: "a.xml.xz" -> "a".
func stem(name string) string {
	name = filepath.Base(name)
	for _, ext := range []string{".gz", ".xz"} {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// isXMLName accepts XML names, optionally compressed.
func isXMLName(name string) bool {
	base := name
	for _, ext := range []string{".gz", ".xz"} {
		base = strings.TrimSuffix(base, ext)
	}
	return validation.FileTypeFromExtension(base) == validation.FileTypeXML
}

// expandSources turns paths into documents. Directories contribute their
// XML files, bundles their XML entries.
func expandSources(paths []string) ([]source, error) {
	var out []source
	for _, p := range paths {
		if err := validation.ValidatePath(p); err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		switch {
		case info.IsDir():
			files, err := listXML(p)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				out = append(out, source{name: filepath.Base(f), path: f})
			}
		case validation.FileTypeFromExtension(p).IsBundle():
			entries, err := bundleSources(p)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		default:
			out = append(out, source{name: filepath.Base(p), path: p})
		}
	}
	return out, nil
}

func listXML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isXMLName(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func bundleSources(path string) ([]source, error) {
	var out []source
	err := archive.IterateBundle(path, func(h *tar.Header, r io.Reader) (bool, error) {
		name := archive.EntryName(h.Name)
		if !isXMLName(name) {
			return false, nil
		}
		if h.Size > validation.MaxFileSize {
			return false, fmt.Errorf("%s: entry %s exceeds %d bytes", path, name, validation.MaxFileSize)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return true, err
		}
		flat, err := validation.SanitizeFilename(name)
		if err != nil {
			return true, err
		}
		out = append(out, source{name: flat, data: data})
		return false, nil
	})
	return out, err
}

// pair is a raw text document and its overlay.
type pair struct {
	text    source
	overlay source
}

// overlayExts are tried in order when looking up an overlay by stem.
var overlayExts = []string{".semdoc", ".xml"}

// pairInputs matches text and overlay inputs. Two files form one pair; two
// directories are matched by file stem and text files without an overlay
// are returned in missing.
func pairInputs(textPath, overlayPath string) (pairs []pair, missing []string, err error) {
	textInfo, err := os.Stat(textPath)
	if err != nil {
		return nil, nil, err
	}
	overlayInfo, err := os.Stat(overlayPath)
	if err != nil {
		return nil, nil, err
	}
	if textInfo.IsDir() != overlayInfo.IsDir() {
		return nil, nil, fmt.Errorf("text and overlay must both be files or both be directories")
	}
	if !textInfo.IsDir() {
		return []pair{{
			text:    source{name: filepath.Base(textPath), path: textPath},
			overlay: source{name: filepath.Base(overlayPath), path: overlayPath},
		}}, nil, nil
	}

	texts, err := listXML(textPath)
	if err != nil {
		return nil, nil, err
	}
	overlays, err := os.ReadDir(overlayPath)
	if err != nil {
		return nil, nil, err
	}
	byStem := make(map[string]string)
	for _, ext := range overlayExts {
		for _, e := range overlays {
			name := e.Name()
			base := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".xz")
			if !e.Type().IsRegular() || filepath.Ext(base) != ext {
				continue
			}
			if _, seen := byStem[stem(name)]; !seen {
				byStem[stem(name)] = filepath.Join(overlayPath, name)
			}
		}
	}

	for _, t := range texts {
		o, ok := byStem[stem(t)]
		if !ok {
			missing = append(missing, filepath.Base(t))
			continue
		}
		pairs = append(pairs, pair{
			text:    source{name: filepath.Base(t), path: t},
			overlay: source{name: filepath.Base(o), path: o},
		})
	}
	return pairs, missing, nil
}
