package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/comm"
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/logger"
)

// Config holds broker listener configuration, mirroring the teacher's
// server.Config shape (plain struct, defaults applied in New).
type Config struct {
	ListenAddr string
	// DisableJPEG reproduces scenario S2 (jpeg unavailable on a broker
	// build) by omitting jpeg from the broker's encoding registry.
	DisableJPEG bool
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9935"
	}
}

// Server is the broker's TCP listener and accept loop: a thin runnable
// shell around Registry and Dispatcher, the way cmd/rtmp-server's Server
// wraps server.Registry. Non-source command routing and any broker policy
// beyond the table in spec.md §6 are out of scope (spec.md §1).
type Server struct {
	cfg    Config
	log    *slog.Logger
	reg    *Registry
	dsp    *Dispatcher
	encReg *encoding.Registry

	mu          sync.RWMutex
	l           net.Listener
	conns       map[string]*comm.Conn
	acceptingWg sync.WaitGroup
	closing     bool
}

// New builds an unstarted Server. The broker's own encoding registry is
// seeded from encoding.Default (raw, jpeg) plus ffv1, which is never
// registered on the client-visible encoding.Default (spec.md §4.E, §9).
func New(cfg Config) *Server {
	cfg.applyDefaults()

	encReg := encoding.NewRegistry()
	encReg.Register(encoding.FFV1Encoding{})
	if !cfg.DisableJPEG {
		if jpeg, err := encoding.Default.Lookup("jpeg"); err == nil {
			encReg.Register(jpeg)
		}
	}
	if raw, err := encoding.Default.Lookup("raw"); err == nil {
		encReg.Register(raw)
	}

	reg := NewRegistry()
	return &Server{
		cfg:    cfg,
		log:    logger.Logger().With("component", "svr_broker"),
		reg:    reg,
		dsp:    NewDispatcher(reg, encReg),
		encReg: encReg,
		conns:  make(map[string]*comm.Conn),
	}
}

// Registry exposes the broker's Source registry (for tests and for a
// supervising process to inspect state).
func (s *Server) Registry() *Registry { return s.reg }

// Start begins listening and launches the accept loop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("broker already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("broker listening", "addr", ln.Addr().String())
	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		s.mu.RUnlock()
		if l == nil {
			return
		}
		nc, err := l.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}

		conn := comm.NewConn(nc)
		conn.SetDispatcher(func(m *arena.Message) { s.dsp.Handle(conn, m) })

		s.mu.Lock()
		s.conns[conn.ID()] = conn
		s.mu.Unlock()
		s.log.Info("connection accepted", "conn_id", conn.ID())
	}
}

// Addr returns the bound listener address (nil if not started).
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// Stop closes the listener and every accepted connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	conns := make([]*comm.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*comm.Conn)
	s.mu.Unlock()

	_ = l.Close()
	for _, c := range conns {
		_ = c.Close()
	}
	s.acceptingWg.Wait()
	s.log.Info("broker stopped")
	return nil
}
