// Package webassets embeds the page templates and the seed theme assets
// compiled into the binary. The seed theme is what the server serves until
// (and unless) a remote theme bundle is loaded.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed templates static
var embedded embed.FS

// Templates returns the fs rooted so template paths read "templates/*.tmpl".
func Templates() fs.FS {
	return embedded
}

// SeedThemeFS returns the embedded static theme assets (css/js/images),
// rooted at the asset names themselves (app.css, app.js, ...).
func SeedThemeFS() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(fmt.Errorf("webassets: static subfs: %w", err))
	}
	return sub
}
