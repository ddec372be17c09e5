package monitor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MewKitBit/Solaris/internal/observability"
	"github.com/MewKitBit/Solaris/internal/sim"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrNilRunner = errors.New("monitor: runner is nil")

const appName = "solaris-monitor"

// Config carries the monitor HTTP surface settings.
type Config struct {
	ListenAddr  string
	CorsOrigins []string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":9400",
		CorsOrigins: []string{"http://localhost:3000"},
	}
}

// Server is the read-only reporting surface over a live run. It exposes
// snapshots and metrics only; nothing it serves mutates simulation state.
type Server struct {
	cfg      Config
	runner   *sim.Runner
	router   *gin.Engine
	appeared time.Time
	httpSrv  *http.Server
}

func NewServer(cfg Config, runner *sim.Runner) (*Server, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}

	observability.RegisterMetrics()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	status := runner.Status()
	router.Use(observability.RequestLogger(log.Logger, status.Scenario, status.RunID))
	router.Use(observability.RequestMetricsMiddleware(appName))
	if len(cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CorsOrigins
		router.Use(cors.New(corsCfg))
	}

	s := &Server{
		cfg:      cfg,
		runner:   runner,
		router:   router,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Serve blocks on the listener until Shutdown or a listener error.
func (s *Server) Serve() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("monitor_listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
