//go:build tools
// +build tools

// Package tools imports dependencies that are used by this project only from
// build-tagged code, so they stay tracked in go.mod.
package tools

import (
	// Database migrations (drivers registered by side effect)
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	// Integration testing
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
