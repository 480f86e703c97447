package prompts

import "embed"

//go:embed roles/*.md
var embeddedFS embed.FS
