// ABOUTME: Template parsing and rendering for the dashboard pages
// ABOUTME: Templates are parsed once at startup from the embedded filesystem

package webui

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/2389/appland/internal/dashboard"
)

// pageTitle is the dashboard heading and document title
const pageTitle = "1ねんせい アプリらんど"

var templateFuncs = template.FuncMap{
	"glyph": dashboard.IconGlyph,
}

// parseTemplates loads every page and partial template.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("webui").Funcs(templateFuncs).ParseFS(templateFS,
		"templates/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

// Template data types
type gridData struct {
	Admin bool
	Apps  []dashboard.AppEntry
}

type shellData struct {
	Title        string
	Token        string
	Motto        string
	State        dashboard.SessionState
	Clock        dashboard.ClockFace
	Grid         gridData
	Creating     bool
	DeleteName   string
	IconOptions  []dashboard.Option
	ColorOptions []dashboard.Option
}

type helpTopic struct {
	Slug   string
	Title  string
	Active bool
}

type helpData struct {
	Topics  []helpTopic
	Content template.HTML
}

// shellFor collects everything the shell template needs for one view.
func (u *UI) shellFor(token string, session *dashboard.Session) shellData {
	state := session.State()
	apps := u.binding.Apps()

	data := shellData{
		Title:        pageTitle,
		Token:        token,
		Motto:        dashboard.Motto,
		State:        state,
		Clock:        u.ticker.Current(),
		Grid:         gridData{Admin: state.Admin, Apps: apps},
		Creating:     state.EditMode == dashboard.EditCreate,
		IconOptions:  dashboard.IconOptions,
		ColorOptions: dashboard.ColorOptions,
	}
	if state.Deleting {
		if entry, ok := u.binding.Find(state.DeleteID); ok {
			data.DeleteName = entry.Name
		}
	}
	return data
}

// render executes a named template into w as HTML.
func (u *UI) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := u.templates.ExecuteTemplate(&buf, name, data); err != nil {
		u.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		u.logger.Debug("failed to write response", "template", name, "error", err)
	}
}

// renderString executes a named template into a string.
func (u *UI) renderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := u.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}
