package main

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/kimhsiao/jour/internal/db"
	"github.com/kimhsiao/jour/internal/logging"
	"github.com/kimhsiao/jour/internal/settings"
	jsync "github.com/kimhsiao/jour/internal/sync"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// server holds the shared state behind the web handlers.
type server struct {
	router http.Handler
	log    *logging.Logger

	repo  *db.Repository
	store *settings.Store

	// newRemote builds the CalDAV client for a configuration snapshot.
	// Tests swap in an in-memory remote here.
	newRemote func(cfg *settings.Config) (jsync.Remote, error)

	templateCache map[string]*template.Template

	// The sync engine is rebuilt whenever the stored CalDAV configuration
	// changes, so edits on the configure pages take effect immediately.
	mu           sync.Mutex
	engine       *jsync.SyncEngine
	engineConfig settings.Config
}

// viewModel is the data every page template receives.
type viewModel struct {
	Title    string
	SignedIn bool
	Yield    interface{}
}

func newServer(repo *db.Repository, store *settings.Store) (*server, error) {
	srv := &server{
		log:   logging.Get().With("web"),
		repo:  repo,
		store: store,
		newRemote: func(cfg *settings.Config) (jsync.Remote, error) {
			return jsync.NewCalDAVClient(cfg)
		},
	}
	if err := srv.parseTemplates(); err != nil {
		return nil, err
	}
	srv.registerRoutes()
	return srv, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) registerRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.requireSession(s.handleIndex))
	mux.HandleFunc("GET /search", s.requireSession(s.handleSearch))
	mux.HandleFunc("GET /caldav", s.requireSession(s.handleCaldav))
	mux.HandleFunc("POST /caldav/sync", s.requireSession(s.handleCaldavSync))
	mux.HandleFunc("GET /configure/credentials", s.requireSession(s.handleCredentialsForm))
	mux.HandleFunc("POST /configure/credentials", s.requireSession(s.handleCredentialsSave))
	mux.HandleFunc("GET /configure/collection", s.requireSession(s.handleCollectionForm))
	mux.HandleFunc("POST /configure/collection", s.requireSession(s.handleCollectionSave))
	mux.HandleFunc("GET /sign-in", s.handleSignIn)
	mux.HandleFunc("GET /authorize", s.handleAuthorize)
	mux.HandleFunc("POST /sign-out", s.handleSignOut)
	mux.HandleFunc("GET /{year}/{month}", s.requireSession(s.handleMonth))
	mux.HandleFunc("GET /{year}/{month}/{day}", s.requireSession(s.handleDay))
	mux.HandleFunc("GET /{year}/{month}/{day}/edit", s.requireSession(s.handleDayEdit))
	mux.HandleFunc("POST /{year}/{month}/{day}", s.requireSession(s.handleDaySave))
	mux.HandleFunc("POST /{year}/{month}/{day}/delete", s.requireSession(s.handleDayDelete))

	s.router = s.recoverPanic(mux)
}

func (s *server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.serverError(w, r, fmt.Errorf("%v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) parseTemplates() error {
	funcs := template.FuncMap{
		"dayurl": dayURL,
	}
	pages := []string{"month", "day", "edit", "search", "caldav", "credentials", "collection", "signin"}
	cache := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		ts, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.gohtml", "templates/"+page+".gohtml")
		if err != nil {
			return fmt.Errorf("parse template %s: %w", page, err)
		}
		cache[page] = ts
	}
	s.templateCache = cache
	return nil
}

func (s *server) render(w http.ResponseWriter, r *http.Request, name, title string, data interface{}) {
	ts, ok := s.templateCache[name]
	if !ok {
		s.serverError(w, r, fmt.Errorf("template %s does not exist", name))
		return
	}

	vm := viewModel{
		Title:    title,
		SignedIn: s.sessionEmail(r) != "",
		Yield:    data,
	}

	buf := bytes.Buffer{}
	if err := ts.ExecuteTemplate(&buf, "layout", vm); err != nil {
		s.serverError(w, r, err)
		return
	}
	buf.WriteTo(w)
}

func (s *server) clientError(w http.ResponseWriter, status int, message string) {
	errorMessage := http.StatusText(status)
	if message != "" {
		errorMessage += ": " + message
	}
	http.Error(w, errorMessage, status)
}

func (s *server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", err, map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// syncEngine returns the engine for the currently stored CalDAV
// configuration, rebuilding it after configuration changes.
func (s *server) syncEngine(ctx context.Context) (*jsync.SyncEngine, error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil && s.engineConfig == *cfg {
		return s.engine, nil
	}

	remote, err := s.newRemote(cfg)
	if err != nil {
		return nil, err
	}
	s.engine = jsync.NewSyncEngine(s.repo, remote)
	s.engineConfig = *cfg
	return s.engine, nil
}
