// Package server exposes progress reports over HTTP.
//
// Routes:
//
//	GET /result   progress report; ?mode=declared|executed and ?forcePass=bool override the defaults
//	GET /health   liveness and version
//	OPTIONS *     CORS preflight, 204
//
// Every response carries open CORS headers and an X-Request-ID. Errors use
// the body {"error": <category>, "message": <detail>}.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"stepwise/internal/logging"
	"stepwise/internal/progress"
)

// Reporter computes progress reports. progress.Service satisfies it.
type Reporter interface {
	Options() progress.Options
	ComputeWith(ctx context.Context, opts progress.Options) (progress.Report, error)
}

// Server wraps the HTTP listener and handlers.
type Server struct {
	settings Settings
	reporter Reporter
	logger   *zap.Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	startTime time.Time
	serveErr  chan error
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the server category logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a server answering from reporter.
func NewServer(settings Settings, reporter Reporter, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		reporter: reporter,
		logger:   logging.Get(logging.CategoryServer).Zap(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/result", s.handleResult)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	var h http.Handler = mux
	h = recoverPanics(s.logger)(h)
	h = allowMethods(h)
	h = cors(h)
	h = logRequests(s.logger)(h)
	h = requestID(h)
	return h
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("server: nil server")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("server: already started")
	}

	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	if s.settings.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.settings.MaxConnections)
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}

	s.listener = listener
	s.server = server
	s.startTime = s.clock()
	s.serveErr = make(chan error, 1)

	go func(errc chan<- error) {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", zap.Error(err))
			errc <- err
		}
		close(errc)
	}(s.serveErr)

	s.logger.Info("listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("max_connections", s.settings.MaxConnections))
	return nil
}

// Done returns a channel that yields a serve error, or closes when serving
// stops. It is nil before Start.
func (s *Server) Done() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("stopped", zap.Duration("uptime", s.clock().Sub(s.startTime)))
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		addr = s.settings.Address()
	}
	return "http://" + addr
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return s.clock().Sub(s.startTime)
}
