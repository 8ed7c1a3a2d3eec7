// Package comm implements SVR's client-broker connection: synchronous
// request/response RPCs plus fire-and-forget Data messages, multiplexed
// over a single net.Conn with a read-loop/write-loop-over-channel design
// grounded on the teacher's internal/rtmp/conn.Connection.
package comm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/lockable"
	"github.com/sevenwolf/svr/internal/logger"
	"github.com/sevenwolf/svr/internal/svrerr"
)

// Conn is one SVR wire connection, used both client-side (talking to the
// broker) and broker-side (one per accepted client/server source or
// subscriber). Only one request may be outstanding at a time per Conn
// (spec.md §4.G); Dispatch receives every message that arrives while no
// request is outstanding — the broker's inbound command stream, or a
// subscriber's fire-and-forget Data messages.
type Conn struct {
	id      string
	netConn net.Conn
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	outbound chan *arena.Message

	gate      *lockable.Lockable
	pendingCh chan *arena.Message // non-nil while a request awaits its response

	dispatch atomic.Pointer[func(*arena.Message)]

	closeOnce sync.Once
	errMu     sync.Mutex
	closeErr  error
}

func (c *Conn) setCloseErr(err error) {
	c.errMu.Lock()
	if c.closeErr == nil {
		c.closeErr = err
	}
	c.errMu.Unlock()
}

// nextID mints a connection identifier for log correlation. Uses uuid rather
// than a counter so IDs stay unique across broker restarts and don't leak
// connection volume into logs.
func nextID() string { return "conn-" + uuid.NewString()[:8] }

// NewConn wraps an already-established net.Conn (e.g. from a broker's
// accept loop, or a test's net.Pipe) and starts its read/write loops.
func NewConn(nc net.Conn) *Conn { return newConn(nc) }

// newConn wraps an already-established net.Conn and starts its read/write
// loops. Callers use Dial (client side) or Accept (broker side).
func newConn(nc net.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	id := nextID()
	c := &Conn{
		id:       id,
		netConn:  nc,
		log:      logger.WithConn(logger.Logger(), id, nc.RemoteAddr().String()),
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(chan *arena.Message, 64),
		gate:     lockable.New(),
	}
	c.startWriteLoop()
	c.startReadLoop()
	return c
}

// Dial opens a client connection to a broker.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &svrerr.CommFailureError{Op: "comm.Dial", Err: err}
	}
	return newConn(nc), nil
}

// Accept performs a blocking Accept on l and wraps the result.
func Accept(l net.Listener) (*Conn, error) {
	nc, err := l.Accept()
	if err != nil {
		return nil, err
	}
	return newConn(nc), nil
}

// ID returns the connection's logical identifier (used in log fields).
func (c *Conn) ID() string { return c.id }

// SetDispatcher installs the callback invoked for every message received
// while no request is outstanding on this connection.
func (c *Conn) SetDispatcher(fn func(*arena.Message)) {
	c.dispatch.Store(&fn)
}

// SendMessage transmits m. If expectResponse is true, it blocks until the
// broker's reply arrives (returned as the first value) or the connection
// is lost (returned as a CommFailureError); spec.md §4.G and §7 forbid any
// retry on COMMFAILURE, so the caller owns reconnection policy. If false,
// the send is fire-and-forget and both return values are nil.
func (c *Conn) SendMessage(m *arena.Message, expectResponse bool) (*arena.Message, error) {
	if !expectResponse {
		select {
		case c.outbound <- m:
			return nil, nil
		case <-c.ctx.Done():
			return nil, &svrerr.CommFailureError{Op: "comm.SendMessage", Err: c.closeErrLocked()}
		}
	}

	respCh := make(chan *arena.Message, 1)
	c.gate.Lock()
	for c.pendingCh != nil {
		c.gate.Wait()
	}
	c.pendingCh = respCh
	c.gate.Unlock()

	select {
	case c.outbound <- m:
	case <-c.ctx.Done():
		c.clearPending(respCh)
		return nil, &svrerr.CommFailureError{Op: "comm.SendMessage", Err: c.closeErrLocked()}
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, &svrerr.CommFailureError{Op: "comm.SendMessage", Err: c.closeErrLocked()}
		}
		return resp, nil
	case <-c.ctx.Done():
		c.clearPending(respCh)
		return nil, &svrerr.CommFailureError{Op: "comm.SendMessage", Err: c.closeErrLocked()}
	}
}

// clearPending removes respCh from the gate if it is still the pending
// response channel (it may already have been resolved by the read loop).
func (c *Conn) clearPending(respCh chan *arena.Message) {
	c.gate.Lock()
	if c.pendingCh == respCh {
		c.pendingCh = nil
		c.gate.Broadcast()
	}
	c.gate.Unlock()
}

func (c *Conn) closeErrLocked() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return errors.New("connection closed")
}

// Close tears down the connection. Any SendMessage blocked waiting for a
// response unblocks with a CommFailureError.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.netConn.Close()
		c.wg.Wait()

		c.gate.Lock()
		if c.pendingCh != nil {
			close(c.pendingCh)
			c.pendingCh = nil
		}
		c.gate.Unlock()
	})
	return nil
}

func (c *Conn) startWriteLoop() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case m, ok := <-c.outbound:
				if !ok {
					return
				}
				if err := writeMessage(c.netConn, m); err != nil {
					c.log.Error("write loop failed", "error", err)
					c.setCloseErr(err)
					c.cancel()
					return
				}
			}
		}
	}()
}

func (c *Conn) startReadLoop() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			msg, err := readMessage(c.netConn)
			if err != nil {
				select {
				case <-c.ctx.Done():
				default:
					if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
						c.log.Error("read loop failed", "error", err)
					}
					c.setCloseErr(err)
					c.cancel()
				}
				return
			}

			c.gate.Lock()
			pending := c.pendingCh
			c.pendingCh = nil
			if pending != nil {
				c.gate.Broadcast()
			}
			c.gate.Unlock()

			if pending != nil {
				pending <- msg
				continue
			}

			if fn := c.dispatch.Load(); fn != nil {
				(*fn)(msg)
			} else {
				msg.Release()
			}
		}
	}()
}
