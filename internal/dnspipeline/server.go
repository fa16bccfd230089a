package dnspipeline

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Server serves a Pipeline on one address and network.
type Server struct {
	pipeline *Pipeline
	addr     string
	net      string
	started  chan net.Addr
}

// NewServer creates a server for network "udp" or "tcp".
func NewServer(p *Pipeline, addr, network string) *Server {
	return &Server{pipeline: p, addr: addr, net: network, started: make(chan net.Addr, 1)}
}

// Started receives the bound address once the listener is up.
func (s *Server) Started() <-chan net.Addr {
	return s.started
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &dns.Server{Handler: s.pipeline, Net: s.net}

	switch s.net {
	case "udp":
		pc, err := net.ListenPacket("udp", s.addr)
		if err != nil {
			return fmt.Errorf("dns listen %s/udp: %w", s.addr, err)
		}
		srv.PacketConn = pc
	case "tcp":
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("dns listen %s/tcp: %w", s.addr, err)
		}
		srv.Listener = ln
	default:
		return fmt.Errorf("unsupported dns network %q", s.net)
	}

	srv.NotifyStartedFunc = func() {
		var bound net.Addr
		if srv.PacketConn != nil {
			bound = srv.PacketConn.LocalAddr()
		} else {
			bound = srv.Listener.Addr()
		}
		s.pipeline.logger.Info("dns server listening", "addr", bound.String(), "net", s.net)
		s.started <- bound
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ActivateAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.ShutdownContext(shutdownCtx); err != nil {
			s.pipeline.logger.Warn("dns shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
