package source

import (
	"strings"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/comm"
)

// OpenServer opens a broker-side source of the given name, described by
// descriptor (an option string naming the source type and its options),
// mirroring SVR_openServerSource. Unlike client sources, a server source
// has no local handle: all frame production happens inside the broker.
func OpenServer(conn *comm.Conn, name, descriptor string) error {
	req := arena.NewFrom("Source.open", "server", name, descriptor)
	resp, err := conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return err
	}
	defer resp.Release()
	return comm.ParseResponse("Source.open", resp)
}

// CloseServer closes the broker-side source named name, mirroring
// SVR_closeServerSource.
func CloseServer(conn *comm.Conn, name string) error {
	req := arena.NewFrom("Source.close", name)
	resp, err := conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return err
	}
	defer resp.Release()
	return comm.ParseResponse("Source.close", resp)
}

// ListedSource is one entry returned by ListSources: a source name
// prefixed by its kind, the Go analog of the "c:"/"s:" string prefix used
// by SVR_getSourcesList.
type ListedSource struct {
	Kind string // "client" or "server"
	Name string
}

// ListSources asks the broker for every registered source, mirroring
// SVR_getSourcesList/SVR_freeSourcesList (list ownership is automatic in
// Go, so there is no separate free step).
func ListSources(conn *comm.Conn) ([]ListedSource, error) {
	req := arena.NewFrom("Source.getSourcesList")
	resp, err := conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return nil, err
	}
	defer resp.Release()

	out := make([]ListedSource, 0, resp.Count()-1)
	for i := 1; i < resp.Count(); i++ {
		entry := resp.Component(i)
		kind, name, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		switch kind {
		case "c":
			kind = "client"
		case "s":
			kind = "server"
		}
		out = append(out, ListedSource{Kind: kind, Name: name})
	}
	return out, nil
}
