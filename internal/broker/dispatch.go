package broker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/comm"
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/logger"
	"github.com/sevenwolf/svr/internal/svrerr"
)

// Dispatcher handles the recognized requests in spec.md §6's table
// (Source.open, Source.close, Source.setEncoding, Source.setFrameProperties,
// Source.getSourcesList, Data) against a Registry, and is installed as a
// comm.Conn's dispatch callback for every connection the broker accepts.
type Dispatcher struct {
	Registry  *Registry
	Encodings *encoding.Registry
}

// NewDispatcher returns a Dispatcher backed by reg, consulting encodings
// for Source.setEncoding lookups (the broker's own registry, which additionally
// carries ffv1 unlike the client-visible encoding.Default a Source uses).
func NewDispatcher(reg *Registry, encodings *encoding.Registry) *Dispatcher {
	return &Dispatcher{Registry: reg, Encodings: encodings}
}

// Handle routes one inbound message from conn, matching spec.md §6's command
// table. It is the function wired via conn.SetDispatcher.
func (d *Dispatcher) Handle(conn *comm.Conn, msg *arena.Message) {
	defer msg.Release()

	switch msg.Component(0) {
	case "Source.open":
		d.handleOpen(conn, msg)
	case "Source.close":
		d.reply(conn, d.Registry.Close(msg.Component(1)))
	case "Source.setEncoding":
		d.handleSetEncoding(conn, msg)
	case "Source.setFrameProperties":
		d.handleSetFrameProperties(conn, msg)
	case "Source.getSourcesList":
		d.handleGetSourcesList(conn)
	case "Data":
		d.handleData(msg)
	default:
		logger.Logger().Warn("unrecognized command", "command", msg.Component(0))
	}
}

func (d *Dispatcher) handleOpen(conn *comm.Conn, msg *arena.Message) {
	kind := KindClient
	if msg.Component(1) == "server" {
		kind = KindServer
	}
	name := msg.Component(2)
	descriptor := msg.Component(3)

	_, err := d.Registry.Open(conn, kind, name, descriptor)
	d.reply(conn, err)
}

func (d *Dispatcher) handleSetEncoding(conn *comm.Conn, msg *arena.Message) {
	name, descriptor := msg.Component(1), msg.Component(2)
	rec, err := d.Registry.Get(name)
	if err == nil {
		err = rec.SetEncoding(d.Encodings, descriptor)
	}
	d.reply(conn, err)
}

func (d *Dispatcher) handleSetFrameProperties(conn *comm.Conn, msg *arena.Message) {
	name, dims := msg.Component(1), msg.Component(2)
	rec, err := d.Registry.Get(name)
	if err == nil {
		var props frameprops.Properties
		props, err = parseDims(dims)
		if err == nil {
			rec.SetFrameProperties(props)
		}
	}
	d.reply(conn, err)
}

func (d *Dispatcher) handleGetSourcesList(conn *comm.Conn) {
	entries := d.Registry.List()
	components := make([]string, 0, len(entries)+1)
	components = append(components, strconv.Itoa(int(svrerr.Success)))
	for _, e := range entries {
		prefix := "c"
		if e.Kind == KindServer {
			prefix = "s"
		}
		components = append(components, prefix+":"+e.Name)
	}
	resp := arena.NewFrom(components...)
	if _, err := conn.SendMessage(resp, false); err != nil {
		logger.Logger().Error("failed to send sources list", "error", err)
	}
	resp.Release()
}

func (d *Dispatcher) handleData(msg *arena.Message) {
	name := msg.Component(1)
	rec, err := d.Registry.Get(name)
	if err != nil {
		return // fire-and-forget: broker-side failure is unreported (spec.md §7)
	}
	rec.BroadcastData(msg.Payload)
}

// reply sends the broker's standardized response shape: first component is
// the numeric status code, second (if any) a diagnostic message.
func (d *Dispatcher) reply(conn *comm.Conn, err error) {
	code := svrerr.CodeOf(err)
	var resp *arena.Message
	if err == nil {
		resp = arena.NewFrom(strconv.Itoa(int(code)))
	} else {
		resp = arena.NewFrom(strconv.Itoa(int(code)), err.Error())
	}
	if _, sendErr := conn.SendMessage(resp, false); sendErr != nil {
		logger.Logger().Error("failed to send response", "error", sendErr)
	}
	resp.Release()
}

// parseDims parses the "W,H,D,C" FrameProperties descriptor (spec.md §6).
func parseDims(s string) (frameprops.Properties, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return frameprops.Properties{}, &svrerr.ParseError{Op: "broker.setFrameProperties", Input: s, Position: 0}
	}
	nums := make([]int, 4)
	offset := 0
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return frameprops.Properties{}, &svrerr.ParseError{Op: "broker.setFrameProperties", Input: s, Position: offset}
		}
		nums[i] = n
		offset += len(p) + 1
	}
	if nums[0] <= 0 || nums[1] <= 0 || nums[3] <= 0 {
		return frameprops.Properties{}, &svrerr.InvalidArgumentError{Op: "broker.setFrameProperties", Err: fmt.Errorf("non-positive dimension in %q", s)}
	}
	return frameprops.New(nums[0], nums[1], frameprops.DepthFromCode(nums[2]), nums[3]), nil
}
