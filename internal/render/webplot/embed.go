// Package webplot is a render surface shown in a web browser. Frames are
// drawn with gonum/plot and served as PNG by a local HTTP server.
package webplot

import "embed"

// templates contains the embedded viewer page.
//
//go:embed templates/*
var templates embed.FS
