// Package server serves shell sessions over TCP, one independent session per
// connection.
package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itsmostafa/pseudoshell/internal/pseudoshell"
	"github.com/itsmostafa/pseudoshell/internal/transport"
)

// SessionFunc builds the shell for a freshly accepted connection.
type SessionFunc func(t *transport.Conn) (*pseudoshell.Shell, error)

// Server accepts connections and runs a shell session on each.
type Server struct {
	newSession  SessionFunc
	idle        time.Duration
	maxSessions int
	logger      *zap.Logger

	active atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithIdleTimeout closes sessions whose client sends nothing for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idle = d }
}

// WithMaxSessions limits concurrent sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(s *Server) { s.maxSessions = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server that builds sessions with newSession.
func New(newSession SessionFunc, opts ...Option) *Server {
	s := &Server{
		newSession: newSession,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the number of running sessions.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln
// and waits for the running sessions to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		_ = ln.Close()
		return nil
	})

	g.Go(func() error {
		// Sessions end with the listener.
		defer cancel()
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			g.Go(func() error {
				s.handle(ctx, conn)
				return nil
			})
		}
	})

	return g.Wait()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	t := transport.NewConn(conn, s.idle)
	defer t.Close()

	log := s.logger.With(zap.String("remote", t.RemoteAddr()))

	if n := s.active.Add(1); s.maxSessions > 0 && n > int64(s.maxSessions) {
		s.active.Add(-1)
		log.Warn("rejecting connection, too many sessions", zap.Int("max", s.maxSessions))
		_ = t.Push(ctx, "Too many sessions, try again later.")
		return
	}
	defer s.active.Add(-1)

	sh, err := s.newSession(t)
	if err != nil {
		log.Error("failed to create session", zap.Error(err))
		return
	}

	log.Info("session opened", zap.String("session", sh.Session()))
	if err := sh.Run(ctx); err != nil {
		log.Info("session dropped", zap.String("session", sh.Session()), zap.Error(err))
		return
	}
	log.Info("session closed", zap.String("session", sh.Session()))
}
