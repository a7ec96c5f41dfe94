// ABOUTME: Embeds HTML templates, static files, and help pages using go:embed
// ABOUTME: Provides templateFS, staticFS, and helpDocsFS for loading at startup

package webui

import "embed"

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

//go:embed docs/help/*.md
var helpDocsFS embed.FS
