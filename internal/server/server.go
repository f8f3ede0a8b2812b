// Package server exposes the conversation engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyago-dev/voyago/internal/dialog"
	"github.com/voyago-dev/voyago/internal/history"
	"github.com/voyago-dev/voyago/pkg/observability"
	"github.com/voyago-dev/voyago/pkg/session"
)

// Server serves the planner API with gin. Turns within one session are
// serialized; different sessions proceed concurrently.
type Server struct {
	engine       *gin.Engine
	orchestrator *dialog.Orchestrator
	sessions     *session.Manager
	searches     *history.Recorder

	mu   sync.Mutex
	live map[string]*liveSession

	httpServer *http.Server
}

// liveSession pins one in-memory dialog session plus its turn lock.
type liveSession struct {
	mu sync.Mutex
	s  *dialog.Session
}

// New creates the API server. searches may be nil when redis is not
// configured.
func New(orchestrator *dialog.Orchestrator, sessions *session.Manager, searches *history.Recorder) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:       gin.New(),
		orchestrator: orchestrator,
		sessions:     sessions,
		searches:     searches,
		live:         make(map[string]*liveSession),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)

	api := s.engine.Group("/api")
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions", s.handleListSessions)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.GET("/sessions/:id/messages", s.handleGetMessages)
	api.POST("/sessions/:id/messages", s.handlePostMessage)
	api.GET("/history", s.handleSearchHistory)
}

// Handler exposes the underlying router, used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run blocks serving the API on the given port.
func (s *Server) Run(port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Printf("[server] listening on :%d", port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	s.mu.Lock()
	s.live[sess.ID] = &liveSession{s: sess}
	s.mu.Unlock()
	observability.SessionOpened()

	c.JSON(http.StatusCreated, gin.H{
		"id":       sess.ID,
		"messages": sess.Messages,
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	metas, err := s.sessions.List(c.Request.Context(), session.ListOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": metas})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")

	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}

	s.mu.Lock()
	if _, ok := s.live[id]; ok {
		delete(s.live, id)
		observability.SessionClosed()
	}
	s.mu.Unlock()

	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetMessages(c *gin.Context) {
	ls, err := s.lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.replyNotFound(c, err)
		return
	}

	ls.mu.Lock()
	messages := append([]dialog.Message(nil), ls.s.Messages...)
	ls.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type postMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handlePostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	ls, err := s.lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.replyNotFound(c, err)
		return
	}

	ls.mu.Lock()
	produced := s.orchestrator.HandleTurn(c.Request.Context(), ls.s, req.Text)
	if err := s.sessions.RecordTurn(c.Request.Context(), ls.s, produced); err != nil {
		log.Printf("[server] failed to persist turn for session %s: %v", ls.s.ID, err)
	}
	ls.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"messages": produced})
}

func (s *Server) handleSearchHistory(c *gin.Context) {
	if s.searches == nil {
		c.JSON(http.StatusOK, gin.H{"searches": []history.Record{}})
		return
	}
	records, err := s.searches.Recent(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read search history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": records})
}

// lookup returns the live session, resuming it from storage on a cold hit.
func (s *Server) lookup(ctx context.Context, id string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ls, ok := s.live[id]; ok {
		return ls, nil
	}

	sess, err := s.sessions.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	ls := &liveSession{s: sess}
	s.live[id] = ls
	return ls, nil
}

func (s *Server) replyNotFound(c *gin.Context, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
}
