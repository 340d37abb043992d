package dashboard

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/sprint"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

const heartbeatInterval = 30 * time.Second

// PromptResolver compiles (or re-compiles) the standalone prompt for one
// phase so /api/prompt can serve it without the dashboard package depending
// on the full compiler+phase registry wiring. Server.Prompt is nil unless a
// caller assigns it, and the route answers 503 while it is nil; the serve
// command does not assign it.
type PromptResolver func(epic, story, phase string) (string, error)

// Server is the dashboard's HTTP surface: chi router, CORS, the SSE bus, and
// read access to state/sprint-status/config for the JSON API routes.
type Server struct {
	Config  *config.Config
	Paths   *paths.Paths
	Store   *state.Store
	Bus     *Bus
	Logger  *log.Logger
	Prompt  PromptResolver
	Version string

	router http.Handler
}

// NewServer builds a Server and its chi router. Call ListenAndServe to run
// it, or Handler() to mount it in a test server.
func NewServer(cfg *config.Config, p *paths.Paths, store *state.Store, bus *Bus, logger *log.Logger, version string) *Server {
	s := &Server{Config: cfg, Paths: p, Store: store, Bus: bus, Logger: logger, Version: version}
	s.router = s.buildRouter()
	return s
}

// Handler returns the server's http.Handler, for use with httptest.Server
// or a custom listener.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware(s.Config.Dashboard.CORSOrigins))

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/stories", s.handleStories)
	r.Get("/api/epics/{epic}", s.handleEpic)
	r.Get("/api/epics/{epic}/stories/{story}", s.handleEpicStory)
	r.Get("/api/version", s.handleVersion)

	r.Get("/sse/output", s.handleSSE)

	r.Get("/api/prompt/{epic}/{story}/{phase}", s.handlePrompt)
	r.Get("/api/validation/{epic}/{story}", s.handleValidation)
	r.Get("/api/report/content", s.handleReportContent)

	r.Get("/api/config/schema", s.handleConfigSchema)
	r.Get("/api/config/export", s.handleConfigExport)
	r.Post("/api/config/import/preview", s.handleConfigImportPreview)
	r.Post("/api/config/import/apply", s.handleConfigImportApply)
	r.Get("/api/config/value", s.handleConfigGet)
	r.Put("/api/config/value", s.handleConfigPut)

	r.Get("/api/playwright/status", s.handlePlaywrightStatus)

	return r
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if st == nil {
		st = state.New(time.Now())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_epic":      epicString(st.CurrentEpic),
		"current_story":     stringOrEmpty(st.CurrentStory),
		"current_phase":     phaseString(st.CurrentPhase),
		"completed_epics":   st.CompletedEpics,
		"completed_stories": st.CompletedStories,
		"started_at":        st.StartedAt,
		"updated_at":        st.UpdatedAt,
		"subscribers":       s.Bus.SubscriberCount(),
	})
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	ss, err := s.loadSprintStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ss.Entries)
}

func (s *Server) handleEpic(w http.ResponseWriter, r *http.Request) {
	epicID := chi.URLParam(r, "epic")
	ss, err := s.loadSprintStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var stories []sprint.Entry
	prefix := epicID + "-"
	for _, e := range ss.Entries {
		if len(e.Key) > len(prefix) && e.Key[:len(prefix)] == prefix {
			stories = append(stories, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"epic":    epicID,
		"status":  ss.EpicMeta["epic-"+epicID],
		"stories": stories,
	})
}

func (s *Server) handleEpicStory(w http.ResponseWriter, r *http.Request) {
	epicID := chi.URLParam(r, "epic")
	storyID := chi.URLParam(r, "story")
	key := epicID + "-" + storyID
	ss, err := s.loadSprintStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, e := range ss.Entries {
		if e.Key == key || (len(e.Key) > len(key) && e.Key[:len(key)+1] == key+"-") {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Errorf("no story found for %s/%s", epicID, storyID))
}

func (s *Server) loadSprintStatus() (*sprint.SprintStatus, error) {
	path := s.Paths.SprintStatusFile()
	if !fileExists(path) {
		return sprint.New(), nil
	}
	return sprint.Parse(path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func phaseString(p *state.Phase) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func epicString(e *paths.EpicID) string {
	if e == nil {
		return ""
	}
	return e.String()
}

// ListenAndServe starts the HTTP server, trying successive ports if the
// requested one is busy and auto-discovery isn't disabled.
func (s *Server) ListenAndServe() error {
	host := s.Config.Dashboard.Host
	port := s.Config.Dashboard.Port

	ln, actualPort, err := listenWithAutoPort(host, port, s.Config.Dashboard.NoAutoPort)
	if err != nil {
		return err
	}
	s.Logger.Info("dashboard listening", "host", host, "port", actualPort)

	server := &http.Server{Handler: s.router}
	return server.Serve(ln)
}

// listenWithAutoPort tries port, then port+1..port+9 unless noAutoPort, and
// returns the first successful listener.
func listenWithAutoPort(host string, port int, noAutoPort bool) (net.Listener, int, error) {
	maxTries := 1
	if !noAutoPort {
		maxTries = 10
	}
	var lastErr error
	for i := 0; i < maxTries; i++ {
		candidate := port + i
		addr := fmt.Sprintf("%s:%d", host, candidate)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, candidate, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("dashboard: no free port found starting at %d: %w", port, lastErr)
}
