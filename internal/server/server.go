// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/auxroom/internal/api"
	"github.com/stwalsh4118/auxroom/internal/config"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/middleware"
	"github.com/stwalsh4118/auxroom/internal/request"
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	identityService *identity.Service
	sessionService  *session.Service
	playlistService *session.PlaylistService
	playbackService *session.PlaybackService
	requestEngine   *request.Engine
	hub             *ws.Hub
	publisher       *ws.Publisher
	messageHandler  *ws.MessageHandler
	router          *gin.Engine
	server          *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	locks := session.NewLocks()

	identityService := identity.NewService(repos, cfg.Session.TokenBytes)
	sessionService := session.NewService(repos, identityService, locks, cfg.Session.JoinCodeBytes, cfg.Session.TokenBytes)
	playlistService := session.NewPlaylistService(database, repos, locks)
	playbackService := session.NewPlaybackService(repos, locks)
	requestEngine := request.NewEngine(database, repos, identityService, playlistService)

	hub := ws.NewHub()
	publisher := ws.NewPublisher(hub, repos, playlistService)
	messageHandler := ws.NewMessageHandler(identityService, sessionService, playbackService, requestEngine, publisher)

	return &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		identityService: identityService,
		sessionService:  sessionService,
		playlistService: playlistService,
		playbackService: playbackService,
		requestEngine:   requestEngine,
		hub:             hub,
		publisher:       publisher,
		messageHandler:  messageHandler,
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	// Create API route group
	apiGroup := s.router.Group("/api")
	requireActor := middleware.RequireActor(s.identityService)

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.hub)
	api.SetupAuthRoutes(apiGroup, s.identityService)
	api.SetupSessionRoutes(apiGroup, api.NewSessionHandler(s.sessionService, s.playlistService), requireActor)
	api.SetupPlaylistRoutes(apiGroup, api.NewPlaylistHandler(s.sessionService, s.playlistService, s.requestEngine, s.identityService, s.publisher), requireActor)
	api.SetupRequestRoutes(apiGroup, api.NewRequestHandler(s.sessionService, s.requestEngine, s.identityService, s.publisher), requireActor)
	api.SetupPlaybackRoutes(apiGroup, api.NewPlaybackHandler(s.sessionService, s.playbackService, s.identityService, s.publisher), requireActor)
	api.SetupLiveRoutes(apiGroup, api.NewLiveHandler(s.hub, s.identityService, s.sessionService, s.playlistService, s.messageHandler, s.config.Session.SendBufferSize))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
