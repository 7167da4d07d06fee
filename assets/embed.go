// Package assets embeds the puzzles shipped with the binary.
//
// Layout: puzzles/<id>/<name>.json, one directory per puzzle. Directories
// starting with "_" or "." (such as _template) are ignored by the loader.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed puzzles
var files embed.FS

// Puzzles returns the embedded puzzle tree rooted at the puzzles directory.
func Puzzles() fs.FS {
	sub, err := fs.Sub(files, "puzzles")
	if err != nil {
		// fs.Sub only fails on an invalid path, and "puzzles" is valid.
		panic(err)
	}
	return sub
}
