package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moonhollow/internal/config"
	"moonhollow/internal/game"
	"moonhollow/internal/narrator"
)

type Server struct {
	store  game.Store
	engine *game.Engine
	ws     *wsHub
	cfg    config.Config
}

func New(store game.Store, cfg config.Config) *Server {
	s := &Server{
		store: store,
		ws:    newWSHub(),
		cfg:   cfg,
	}
	var n game.Narrator
	if cfg.OpenAIAPIKey != "" {
		n = narrator.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	s.engine = game.NewEngine(store, n, s)
	return s
}

// Engine exposes the phase engine for the sweep ticker in cmd/server.
func (s *Server) Engine() *game.Engine {
	return s.engine
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/sessions", s.handleCreateSession)
	api.POST("/sessions/join", s.handleJoinSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteOrphan)
	api.POST("/sessions/:id/settings", s.handleUpdateSettings)
	api.POST("/sessions/:id/leave", s.handleLeaveSession)
	api.POST("/sessions/:id/ready", s.handleReady)
	api.POST("/sessions/:id/start", s.handleStartSession)
	api.POST("/sessions/:id/restart", s.handleRestartSession)
	api.POST("/sessions/:id/narration-done", s.handleNarrationDone)
	api.POST("/sessions/:id/vote", s.handleVote)
	api.POST("/sessions/:id/night-action", s.handleNightAction)
	api.POST("/sessions/:id/last-act", s.handleLastAct)
	api.POST("/sessions/:id/sweep", s.handleSweep)

	router.GET("/ws/sessions/:id", s.handleWebsocket)
	return router
}
