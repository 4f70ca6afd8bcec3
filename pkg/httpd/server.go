package httpd

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/oneconcern/dagsync/pkg/dlogger"
	"go.uber.org/zap"
)

const (
	// DefaultListen is the default address of the server
	DefaultListen = "localhost:8418"

	defaultCleanupTimeout = 10 * time.Second
	defaultReadTimeout    = 5 * time.Minute
	defaultWriteTimeout   = 5 * time.Minute
	defaultMaxHeaderSize  = 1 << 20
)

// Option for the server
type Option func(*Server)

// Listen sets the address to listen on
func Listen(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// HandlesRequestsWith handles the http requests to the server
func HandlesRequestsWith(h http.Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// LogsWith provides a logger to the server
func LogsWith(l *zap.Logger) Option {
	return func(s *Server) {
		s.l = dlogger.OrNop(l)
	}
}

// Timeouts sets the read and write timeouts of requests
func Timeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// CleanupTimeout sets the grace period to wait for in-flight requests on shutdown
func CleanupTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cleanupTimeout = d
	}
}

// OnShutdown runs the provided functions on shutdown
func OnShutdown(handlers ...func()) Option {
	return func(s *Server) {
		s.onShutdown = append(s.onShutdown, handlers...)
	}
}

// Server serves dagsync requests over http
type Server struct {
	addr           string
	handler        http.Handler
	l              *zap.Logger
	readTimeout    time.Duration
	writeTimeout   time.Duration
	cleanupTimeout time.Duration
	onShutdown     []func()

	mx       sync.Mutex
	listener net.Listener
}

// New creates a server but does not start it
func New(opts ...Option) *Server {
	s := &Server{
		addr:           DefaultListen,
		handler:        http.NotFoundHandler(),
		l:              zap.NewNop(),
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		cleanupTimeout: defaultCleanupTimeout,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Listen opens the listener of the server. Serve calls Listen when needed.
func (s *Server) Listen() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Addr yields the address the server listens on
func (s *Server) Addr() string {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Serve requests until the context is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hs := &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.cleanupTimeout,
		MaxHeaderBytes: defaultMaxHeaderSize,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.l.Info("shutting down server", zap.String("addr", s.Addr()))
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
		defer cancel()
		err := hs.Shutdown(shutdownCtx)
		for _, run := range s.onShutdown {
			run()
		}
		done <- err
	}()

	s.l.Info("serving", zap.String("addr", "http://"+s.Addr()))
	if err := hs.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	err := <-done
	s.l.Info("stopped serving", zap.String("addr", s.Addr()))
	return err
}
