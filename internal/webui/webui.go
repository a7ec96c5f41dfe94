// ABOUTME: Dashboard web UI: page rendering, view sessions, and htmx action routes
// ABOUTME: Each page load gets its own view; admin actions are refused while locked

package webui

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/2389/appland/internal/dashboard"
)

const (
	// ViewTokenHeader carries the view token on htmx requests
	ViewTokenHeader = "X-View-Token"

	// viewTokenParam carries the view token on stream URLs
	viewTokenParam = "view"

	// noticeEvent is the htmx event that pops a blocking notice
	noticeEvent = "appNotice"
)

// Config holds web UI configuration
type Config struct {
	// TokenSecret signs view tokens
	TokenSecret []byte
	// IdleTTL removes views without an open stream after this long
	IdleTTL time.Duration
	// MaxViews caps open views; the least recently used is evicted
	MaxViews int
}

// UI handles dashboard routes
type UI struct {
	binding   *dashboard.Binding
	ticker    *dashboard.Ticker
	views     *Registry
	tokens    *ViewTokens
	templates *template.Template
	logger    *slog.Logger
}

// view is a resolved view session for one request
type view struct {
	id      string
	token   string
	session *dashboard.Session
}

// New creates the web UI. Sessions are created with gate and writer.
func New(binding *dashboard.Binding, ticker *dashboard.Ticker, gate *dashboard.Gate, writer dashboard.Writer, cfg Config, logger *slog.Logger) (*UI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webui")

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	newSession := func() *dashboard.Session {
		return dashboard.NewSession(gate, writer)
	}

	return &UI{
		binding:   binding,
		ticker:    ticker,
		views:     NewRegistry(cfg.IdleTTL, cfg.MaxViews, newSession, logger),
		tokens:    NewViewTokens(cfg.TokenSecret),
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Close releases web UI resources
func (u *UI) Close() {
	u.views.Close()
}

// Views returns the number of open views
func (u *UI) Views() int {
	return u.views.Count()
}

// RegisterRoutes registers all dashboard routes on the given mux
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.handlePage)
	mux.HandleFunc("GET /api/apps", u.handleAPIApps)
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticHandler()))

	// Live push
	mux.HandleFunc("GET /events", u.handleEvents)
	mux.HandleFunc("GET /ws", u.handleWebSocket)

	// Admin gate
	mux.HandleFunc("POST /view/login/open", u.withView(u.handleLoginOpen))
	mux.HandleFunc("POST /view/login/close", u.withView(u.handleLoginClose))
	mux.HandleFunc("POST /view/login", u.withView(u.handleLogin))
	mux.HandleFunc("POST /view/lock", u.withView(u.handleLock))

	// Edit machine
	mux.HandleFunc("POST /view/edit/new", u.withView(u.requireAdmin(u.handleEditNew)))
	mux.HandleFunc("POST /view/edit/draft", u.withView(u.requireAdmin(u.handleEditDraft)))
	mux.HandleFunc("POST /view/edit/save", u.withView(u.requireAdmin(u.handleEditSave)))
	mux.HandleFunc("POST /view/edit/cancel", u.withView(u.handleEditCancel))
	mux.HandleFunc("POST /view/edit/{id}", u.withView(u.requireAdmin(u.handleEditExisting)))

	// Delete machine
	mux.HandleFunc("POST /view/delete/confirm", u.withView(u.requireAdmin(u.handleDeleteConfirm)))
	mux.HandleFunc("POST /view/delete/cancel", u.withView(u.handleDeleteCancel))
	mux.HandleFunc("POST /view/delete/{id}", u.withView(u.requireAdmin(u.handleDeleteStart)))

	// Help
	mux.HandleFunc("GET /view/help", u.withView(u.requireAdmin(u.handleHelp)))

	u.logger.Info("dashboard routes registered")
}

type viewHandler func(w http.ResponseWriter, r *http.Request, v *view)

// withView resolves the request's view token to a session
func (u *UI) withView(next viewHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, status := u.resolveView(r, false)
		if v == nil {
			u.refuseView(w, status)
			return
		}
		next(w, r, v)
	}
}

// requireAdmin refuses the action unless the view is unlocked
func (u *UI) requireAdmin(next viewHandler) viewHandler {
	return func(w http.ResponseWriter, r *http.Request, v *view) {
		if !v.session.Admin() {
			http.Error(w, "Admin mode is locked", http.StatusForbidden)
			return
		}
		next(w, r, v)
	}
}

// viewToken extracts the token from the header or the query string
func viewToken(r *http.Request) string {
	if token := r.Header.Get(ViewTokenHeader); token != "" {
		return token
	}
	return r.URL.Query().Get(viewTokenParam)
}

// resolveView verifies the token and looks up the view. attach also counts
// an open stream against the view. Returns a nil view and the status to
// answer with on failure.
func (u *UI) resolveView(r *http.Request, attach bool) (*view, int) {
	token := viewToken(r)
	if token == "" {
		return nil, http.StatusUnauthorized
	}

	id, err := u.tokens.ViewID(token)
	if errors.Is(err, ErrExpiredToken) {
		return nil, http.StatusGone
	}
	if err != nil {
		u.logger.Debug("rejected view token", "error", err)
		return nil, http.StatusUnauthorized
	}

	var session *dashboard.Session
	if attach {
		session, err = u.views.Attach(id)
	} else {
		session, err = u.views.Get(id)
	}
	if errors.Is(err, ErrViewNotFound) {
		return nil, http.StatusGone
	}
	if err != nil {
		u.logger.Error("failed to resolve view", "view_id", id, "error", err)
		return nil, http.StatusInternalServerError
	}

	return &view{id: id, token: token, session: session}, http.StatusOK
}

// refuseView answers a request whose view could not be resolved. htmx
// reloads the page, which creates a fresh view.
func (u *UI) refuseView(w http.ResponseWriter, status int) {
	switch status {
	case http.StatusGone:
		w.Header().Set("HX-Refresh", "true")
		http.Error(w, "View expired", http.StatusGone)
	case http.StatusUnauthorized:
		http.Error(w, "Invalid view token", http.StatusUnauthorized)
	default:
		http.Error(w, "Internal server error", status)
	}
}

// handlePage creates a new view and renders the full dashboard
func (u *UI) handlePage(w http.ResponseWriter, r *http.Request) {
	id, session := u.views.Create()

	token, err := u.tokens.Issue(id, viewTokenLifetime)
	if err != nil {
		u.logger.Error("failed to sign view token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	u.render(w, "page", u.shellFor(token, session))
}

// renderShell re-renders the view's shell and raises any pending notice
func (u *UI) renderShell(w http.ResponseWriter, v *view) {
	if notice := v.session.TakeNotice(); notice != "" {
		setTrigger(w, noticeEvent, notice)
	}
	u.render(w, "shell", u.shellFor(v.token, v.session))
}

func (u *UI) handleLoginOpen(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.OpenLogin()
	u.renderShell(w, v)
}

func (u *UI) handleLoginClose(w http.ResponseWriter, r *http.Request, v *view) {
	if err := r.ParseForm(); err == nil && r.PostForm.Has("password") {
		v.session.SetPassword(r.PostForm.Get("password"))
	}
	v.session.CloseLogin()
	u.renderShell(w, v)
}

func (u *UI) handleLogin(w http.ResponseWriter, r *http.Request, v *view) {
	if v.session.AttemptLogin(r.FormValue("password")) {
		u.logger.Info("admin mode unlocked", "view_id", v.id)
	} else {
		u.logger.Info("admin login failed", "view_id", v.id)
	}
	u.renderShell(w, v)
}

func (u *UI) handleLock(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.Lock()
	u.logger.Info("admin mode locked", "view_id", v.id)
	u.renderShell(w, v)
}

func (u *UI) handleEditNew(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.StartEdit(nil)
	u.renderShell(w, v)
}

func (u *UI) handleEditExisting(w http.ResponseWriter, r *http.Request, v *view) {
	entry, ok := u.binding.Find(r.PathValue("id"))
	if !ok {
		http.Error(w, "App not found", http.StatusNotFound)
		return
	}
	v.session.StartEdit(&entry)
	u.renderShell(w, v)
}

func (u *UI) handleEditDraft(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.UpdateDraft(draftFromForm(r))
	u.renderShell(w, v)
}

func (u *UI) handleEditSave(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.UpdateDraft(draftFromForm(r))
	if v.session.SaveDraft(r.Context()) {
		u.logger.Info("app saved", "view_id", v.id)
	}
	u.renderShell(w, v)
}

func (u *UI) handleEditCancel(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.CancelEdit()
	u.renderShell(w, v)
}

func (u *UI) handleDeleteStart(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.StartDelete(r.PathValue("id"))
	u.renderShell(w, v)
}

func (u *UI) handleDeleteConfirm(w http.ResponseWriter, r *http.Request, v *view) {
	if v.session.ConfirmDelete(r.Context()) {
		u.logger.Info("app deleted", "view_id", v.id)
	}
	u.renderShell(w, v)
}

func (u *UI) handleDeleteCancel(w http.ResponseWriter, r *http.Request, v *view) {
	v.session.CancelDelete()
	u.renderShell(w, v)
}

// handleAPIApps returns the current list as JSON
func (u *UI) handleAPIApps(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"apps": u.binding.Apps()}); err != nil {
		u.logger.Debug("failed to write apps", "error", err)
	}
}

// draftFromForm collects the draft fields present in the form
func draftFromForm(r *http.Request) dashboard.DraftFields {
	_ = r.ParseForm()

	field := func(key string) *string {
		if _, ok := r.PostForm[key]; !ok {
			return nil
		}
		v := r.PostForm.Get(key)
		return &v
	}

	return dashboard.DraftFields{
		Name:  field("name"),
		URL:   field("url"),
		Icon:  field("icon"),
		Color: field("color"),
	}
}

// setTrigger sets an HX-Trigger header carrying detail. Header values are
// ASCII, so non-ASCII text is sent as JSON \u escapes.
func setTrigger(w http.ResponseWriter, event, detail string) {
	data, err := json.Marshal(map[string]string{event: detail})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", asciiJSON(string(data)))
}

// asciiJSON escapes every non-ASCII rune of a JSON document.
func asciiJSON(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		for _, unit := range utf16.Encode([]rune{r}) {
			b.WriteString(`\u`)
			const hex = "0123456789abcdef"
			b.WriteByte(hex[unit>>12&0xf])
			b.WriteByte(hex[unit>>8&0xf])
			b.WriteByte(hex[unit>>4&0xf])
			b.WriteByte(hex[unit&0xf])
		}
	}
	return b.String()
}
