// Package static embeds the browser viewer served at the web root.
package static

import "embed"

//go:embed index.html
var StaticFS embed.FS

// ReadFile reads a file from the embedded filesystem.
func ReadFile(name string) ([]byte, error) {
	return StaticFS.ReadFile(name)
}
