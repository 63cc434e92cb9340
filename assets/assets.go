// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

//go:embed templates/email/* common-passwords.txt
var FS embed.FS

const (
	EmailTemplatesDir   = "templates/email"
	CommonPasswordsPath = "common-passwords.txt"
)
