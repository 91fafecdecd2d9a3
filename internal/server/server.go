package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/gin-gonic/gin"
)

// TokenHeader carries the shared secret for POST /run.
const TokenHeader = "X-Run-Token"

type Runner interface {
	Run(ctx context.Context) (models.Report, error)
}

// Server triggers pipeline runs over HTTP. At most one run is in flight.
type Server struct {
	runner  Runner
	token   string
	timeout time.Duration
	logger  *slog.Logger

	running sync.Mutex

	mu      sync.RWMutex
	last    *models.Report
	lastErr string
	busy    bool
	done    chan struct{}
}

func New(runner Runner, token string, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Server{runner: runner, token: token, timeout: timeout, logger: logger}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "HireFire scraper is running!",
			"status":  "healthy",
		})
	})
	r.GET("/status", s.status)
	r.POST("/run", s.trigger)
	return r
}

func (s *Server) status(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"running":     s.busy,
		"last_report": s.last,
		"last_error":  s.lastErr,
	})
}

func (s *Server) trigger(c *gin.Context) {
	if s.token != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(TokenHeader)), []byte(s.token)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid run token"})
		return
	}
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.busy = true
	s.done = done
	s.mu.Unlock()

	go s.run(done)
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) run(done chan struct{}) {
	defer close(done)
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("🚀 Run triggered over HTTP")
	report, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.last = &report
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Error("❌ Run failed", "error", err)
	}
}

// Wait blocks until the run in flight, if any, has finished.
func (s *Server) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}
