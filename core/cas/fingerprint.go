package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies an emitted corpus artifact. SHA-256 is the
// storage key; BLAKE3 is recorded alongside for fast re-verification.
type Fingerprint struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
	Size   int64  `json:"size"`
}

// Sum fingerprints data.
func Sum(data []byte) Fingerprint {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return Fingerprint{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
		Size:   int64(len(data)),
	}
}

// SumReader fingerprints everything read from r in one pass.
func SumReader(r io.Reader) (Fingerprint, error) {
	sh := sha256.New()
	bh := blake3.New()
	n, err := io.Copy(io.MultiWriter(sh, bh), r)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		BLAKE3: hex.EncodeToString(bh.Sum(nil)),
		Size:   n,
	}, nil
}

// Hash computes the SHA-256 hash of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hash of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
