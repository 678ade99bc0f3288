// Package appfs embeds the files the binaries ship with: SQL migrations, templates and assets.
package appfs

import "embed"

//go:embed migrations all:templates assets
var FS embed.FS
