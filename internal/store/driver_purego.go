//go:build !sqlite_cgo

package store

// This file is compiled by default and selects the pure Go SQLite driver.
// No C compiler is required and cross-compilation works out of the box.
//
// Build command:
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
