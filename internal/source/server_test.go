package source

import (
	"net"
	"testing"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/comm"
)

func TestOpenCloseServerSource(t *testing.T) {
	c1, c2 := net.Pipe()
	client := comm.NewConn(c1)
	broker := comm.NewConn(c2)
	defer client.Close()
	defer broker.Close()

	broker.SetDispatcher(func(m *arena.Message) {
		defer m.Release()
		resp := success()
		broker.SendMessage(resp, false)
	})

	if err := OpenServer(client, "cam2", "v4l2;device=/dev/video0"); err != nil {
		t.Fatalf("OpenServer: %v", err)
	}
	if err := CloseServer(client, "cam2"); err != nil {
		t.Fatalf("CloseServer: %v", err)
	}
}

func TestListSources(t *testing.T) {
	c1, c2 := net.Pipe()
	client := comm.NewConn(c1)
	broker := comm.NewConn(c2)
	defer client.Close()
	defer broker.Close()

	broker.SetDispatcher(func(m *arena.Message) {
		defer m.Release()
		resp := arena.NewFrom("0", "c:a", "s:b")
		broker.SendMessage(resp, false)
	})

	list, err := ListSources(client)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].Kind != "client" || list[0].Name != "a" {
		t.Fatalf("unexpected first entry: %+v", list[0])
	}
	if list[1].Kind != "server" || list[1].Name != "b" {
		t.Fatalf("unexpected second entry: %+v", list[1])
	}
}
