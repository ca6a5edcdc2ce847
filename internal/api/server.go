package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultPruneInterval applies when Deps.PruneInterval is unset.
const defaultPruneInterval = time.Minute

// HealthChecker is implemented by every backend reported on /api/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StoreGauges receives the size of the in-memory auth stores after every
// prune cycle.
type StoreGauges interface {
	RecordStoreSizes(revoked, pendingResets int)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Cookie config.CookieConfig
	Logger *logging.Logger

	Auth        *auth.Service
	Guard       *auth.Guard
	Revocations *auth.RevocationRegistry
	Resets      *auth.ResetTokenStore

	// PruneInterval is how often expired revocations and reset tokens are
	// dropped while the server runs.
	PruneInterval time.Duration

	// Gauges and HealthChecks are optional.
	Gauges       StoreGauges
	HealthChecks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for habitatT.
//
// It owns the HTTP listener, routes and middleware, and the background
// loops that prune the in-memory auth stores. Create it with New and start
// it with Start.
type Server struct {
	cfg           config.APIConfig
	cookie        config.CookieConfig
	logger        *logging.Logger
	auth          *auth.Service
	guard         *auth.Guard
	revocations   *auth.RevocationRegistry
	resets        *auth.ResetTokenStore
	pruneInterval time.Duration
	gauges        StoreGauges
	health        map[string]HealthChecker
	version       string

	router http.Handler
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc // cancels background goroutines on Close()
	wg     sync.WaitGroup
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("guard is required")
	}
	if deps.Revocations == nil || deps.Resets == nil {
		return nil, fmt.Errorf("revocation registry and reset token store are required")
	}
	if deps.PruneInterval <= 0 {
		deps.PruneInterval = defaultPruneInterval
	}

	s := &Server{
		cfg:           deps.Config,
		cookie:        deps.Cookie,
		logger:        deps.Logger,
		auth:          deps.Auth,
		guard:         deps.Guard,
		revocations:   deps.Revocations,
		resets:        deps.Resets,
		pruneInterval: deps.PruneInterval,
		gauges:        deps.Gauges,
		health:        deps.HealthChecks,
		version:       deps.Version,
	}
	s.router = s.buildRouter()

	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener, launches the prune loops and serves HTTP in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()

	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startMaintenance(srvCtx)

	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var serveErr error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.addr.String(),
				"cert", s.cfg.TLS.CertFile,
			)
			serveErr = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.addr.String())
			serveErr = s.server.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	return nil
}

// startMaintenance runs the revocation and reset-token prune loops, plus
// the store gauge reporter when one is configured.
func (s *Server) startMaintenance(ctx context.Context) {
	slogger := s.logger.Logger

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.revocations.Run(ctx, s.pruneInterval, slogger)
	}()
	go func() {
		defer s.wg.Done()
		s.resets.Run(ctx, s.pruneInterval, slogger)
	}()

	if s.gauges != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reportStoreSizes(ctx)
		}()
	}
}

func (s *Server) reportStoreSizes(ctx context.Context) {
	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.gauges.RecordStoreSizes(s.revocations.Len(), s.resets.Len())
		}
	}
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It stops the background loops and waits up to 10 seconds for in-flight
// requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
