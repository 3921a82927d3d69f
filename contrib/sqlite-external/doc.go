// Package sqliteexternal provides the optional CGO SQLite driver for the
// run registry.
//
// To use the CGO driver (github.com/mattn/go-sqlite3), build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/nercorpus
//
// Without the tag, core/sqlite uses the pure Go modernc.org/sqlite driver
// and this package is not compiled in.
package sqliteexternal
