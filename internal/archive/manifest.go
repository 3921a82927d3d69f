package archive

import (
	"archive/tar"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/cas"
)

// ManifestName is the bundle entry holding the Manifest.
const ManifestName = "manifest.json"

// Manifest describes an output bundle: which run produced it and the
// fingerprint of every file it carries.
type Manifest struct {
	Version   string                     `json:"version"`
	RunID     string                     `json:"run_id,omitempty"`
	Command   string                     `json:"command,omitempty"`
	CreatedAt string                     `json:"created_at,omitempty"`
	Files     map[string]cas.Fingerprint `json:"files"`
	Metadata  map[string]string          `json:"metadata,omitempty"`
}

// NewManifest returns an empty manifest at the current format version.
func NewManifest(runID, command string) *Manifest {
	return &Manifest{Version: "1", RunID: runID, Command: command, Files: make(map[string]cas.Fingerprint)}
}

// AddWithManifest writes data to the bundle and records its fingerprint.
func (bw *BundleWriter) AddWithManifest(m *Manifest, name string, data []byte) error {
	if err := bw.Add(name, data); err != nil {
		return err
	}
	m.Files[name] = cas.Sum(data)
	return nil
}

// WriteManifest adds m as the manifest entry.
func (bw *BundleWriter) WriteManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return bw.Add(ManifestName, data)
}

// ReadManifest loads the manifest of a bundle.
func ReadManifest(bundlePath string) (*Manifest, error) {
	data, err := ReadFile(bundlePath, ManifestName)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// BundleID strips bundle extensions from a filename.
func BundleID(filename string) string {
	for _, ext := range []string{".tar.xz", ".tar.gz", ".tgz", ".txz", ".tar"} {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

// VerifyBundle checks every file listed in the manifest against its
// recorded fingerprint. It returns the names that are missing or differ.
func VerifyBundle(bundlePath string) ([]string, error) {
	m, err := ReadManifest(bundlePath)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(m.Files))
	var bad []string
	err = IterateBundle(bundlePath, func(header *tar.Header, r io.Reader) (bool, error) {
		name := EntryName(header.Name)
		want, ok := m.Files[name]
		if !ok {
			return false, nil
		}
		got, err := cas.SumReader(r)
		if err != nil {
			return true, err
		}
		seen[name] = true
		if got.SHA256 != want.SHA256 || got.BLAKE3 != want.BLAKE3 {
			bad = append(bad, name)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	for name := range m.Files {
		if !seen[name] {
			bad = append(bad, name)
		}
	}
	sort.Strings(bad)
	return bad, nil
}
