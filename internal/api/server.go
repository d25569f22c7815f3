package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/scripting"
	"github.com/MJE43/killteam-scorer/internal/store"
)

const maxBodyBytes = 1 << 20

// ServerOptions configures the API server.
type ServerOptions struct {
	MatchOptions   match.Options
	SessionLimit   int
	RequestTimeout time.Duration
	FormulaTimeout time.Duration
	CORSOrigin     string
}

// Server handles HTTP requests
type Server struct {
	db           store.DB
	sessions     *SessionRegistry
	formulas     *scripting.FormulaVM
	opts         ServerOptions
	errorHandler *ErrorHandler
	logger       *log.Logger
	audit        *AuditLogger
	startTime    time.Time
	httpServer   *http.Server
}

// NewServer creates a new API server
func NewServer(db store.DB, opts ServerOptions) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	logger := log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	audit := NewAuditLogger()

	server := &Server{
		db:           db,
		sessions:     NewSessionRegistry(opts.SessionLimit),
		formulas:     scripting.NewFormulaVM(opts.FormulaTimeout),
		opts:         opts,
		errorHandler: NewErrorHandler(logger, audit),
		logger:       logger,
		audit:        audit,
		startTime:    time.Now(),
	}

	audit.LogSystemStartup(map[string]interface{}{
		"session_limit":   server.sessions.Limit(),
		"starting_cp":     opts.MatchOptions.StartingCP,
		"first_turn":      opts.MatchOptions.FirstTurn,
		"formula_timeout": opts.FormulaTimeout,
	})

	return server
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.CORSMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)
		r.Get("/health/ready", s.handleReadiness)
		r.Get("/health/live", s.handleLiveness)
		r.Get("/version", s.handleVersion)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", s.handleCreateMatch)
			r.Get("/", s.handleListMatches)

			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", s.handleGetMatch)
				r.Delete("/", s.handleDeleteMatch)

				r.Route("/players/{side}", func(r chi.Router) {
					r.Get("/", s.handleGetPlayer)
					r.Put("/name", s.handleSetName)
					r.Post("/fields", s.handleAdjustField)
					r.Post("/cp", s.handleAdjustCP)
					r.Put("/cards/{index}", s.handleSetCardUsed)
				})

				r.Post("/initiative", s.handleInitiative)
				r.Post("/turn/advance", s.handleAdvanceTurn)
				r.Post("/turn/retreat", s.handleRetreatTurn)

				r.Put("/secrets/{commitment}", s.handleSetSecret)
				r.Get("/secrets/{commitment}", s.handleGetSecret)

				r.Post("/finalize", s.handleFinalize)
				r.Post("/reset", s.handleReset)

				r.Get("/export", s.handleExport)
				r.Post("/import", s.handleImport)

				r.Get("/killops", s.handleGetKillOps)
				r.Put("/killops/{size}", s.handleSetKillOpsRow)
				r.Delete("/killops/{size}", s.handleDeleteKillOpsRow)
				r.Put("/killops/{size}/{kills}", s.handleSetKillOpsCell)
				r.Post("/killops/{size}/formula", s.handleKillOpsFormula)

				r.Get("/events", s.handleListEvents)
				r.Get("/events/tail", s.handleTailEvents)
				r.Get("/events.csv", s.handleExportEventsCSV)
				r.Post("/save", s.handleSave)
			})
		})

		r.Route("/saved", func(r chi.Router) {
			r.Get("/", s.handleListSaved)
			r.Get("/{savedID}", s.handleGetSaved)
			r.Post("/{savedID}/load", s.handleLoadSaved)
			r.Delete("/{savedID}", s.handleDeleteSaved)
		})
	})

	return r
}

// Start begins listening in a goroutine. It returns when the socket is bound.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Printf("server_listening addr=%s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server_error err=%v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Sessions exposes the live match registry.
func (s *Server) Sessions() *SessionRegistry { return s.sessions }

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("response_encode_failed err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeBody(w, status, body)
}

func (s *Server) writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}

// decodeJSON reads a bounded JSON body into v, writing a validation error
// on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}
