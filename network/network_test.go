package network

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lixenwraith/wayfinder/replication"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := &Message{Type: MsgWaypoint, Seq: 7, Ack: 3, Payload: []byte{0, 1, 2, 3}}
	if err := WriteMessage(&buf, in); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != HeaderSize+4 {
		t.Fatalf("encoded %d bytes, want %d", buf.Len(), HeaderSize+4)
	}

	out, err := ReadMessage(&buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != in.Type || out.Seq != 7 || out.Ack != 3 || !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("decoded %+v", out)
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	WriteMessage(&buf, &Message{Type: MsgHello, Seq: 0x01020304, Ack: 0x0a0b0c0d, Payload: []byte{0xee}})
	want := []byte{0x02, 0x00, 1, 2, 3, 4, 0x0a, 0x0b, 0x0c, 0x0d, 0x00, 0x01, 0xee}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("bytes = % x\nwant    % x", buf.Bytes(), want)
	}
}

func TestFragmentation(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		frames int
	}{
		{"empty", 0, 1},
		{"exact frame", MaxFramePayload, 1},
		{"one over", MaxFramePayload + 1, 2},
		{"large", 3*MaxFramePayload + 10, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i)
			}
			var buf bytes.Buffer
			if err := WriteMessage(&buf, NewMessage(MsgWaypoint, payload)); err != nil {
				t.Fatal(err)
			}
			if got := buf.Len(); got != tt.size+tt.frames*HeaderSize {
				t.Errorf("encoded %d bytes, want %d frames", got, tt.frames)
			}
			out, err := ReadMessage(&buf, 1<<20)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(out.Payload, payload) {
				t.Error("payload mismatch after reassembly")
			}
			if out.Flags&FlagMore != 0 {
				t.Error("reassembled message still flagged")
			}
		})
	}
}

func TestReadMessageErrors(t *testing.T) {
	var buf bytes.Buffer
	WriteMessage(&buf, NewMessage(MsgWaypoint, make([]byte, 2*MaxFramePayload)))
	if _, err := ReadMessage(bytes.NewReader(buf.Bytes()), 1000); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversize err = %v", err)
	}

	if _, err := ReadMessage(bytes.NewReader(nil), 0); !errors.Is(err, io.EOF) {
		t.Errorf("empty err = %v, want EOF", err)
	}

	cut := buf.Bytes()[:HeaderSize+10]
	if _, err := ReadMessage(bytes.NewReader(cut), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated err = %v, want unexpected EOF", err)
	}

	// First fragment complete, second missing entirely
	first := buf.Bytes()[:HeaderSize+MaxFramePayload]
	if _, err := ReadMessage(bytes.NewReader(first), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("missing fragment err = %v, want unexpected EOF", err)
	}

	var mixed bytes.Buffer
	mixed.Write(buf.Bytes()[:HeaderSize+MaxFramePayload])
	WriteMessage(&mixed, NewMessage(MsgHello, nil))
	if _, err := ReadMessage(&mixed, 0); !errors.Is(err, ErrFragmentMismatch) {
		t.Errorf("mixed err = %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindTCP, "TCP": KindTCP, "ws": KindWebSocket, "websocket": KindWebSocket} {
		if got, err := ParseKind(in); err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("udp"); err == nil {
		t.Error("udp accepted")
	}
}

func next(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

func startPair(t *testing.T, kind Kind) (*Service, *Service, uuid.UUID) {
	t.Helper()

	serverCfg := DebugConfig(RoleServer, "127.0.0.1:0")
	serverCfg.Kind = kind
	server := NewService(uuid.New(), nil, nil)
	if err := server.Init(serverCfg); err != nil {
		t.Fatal(err)
	}
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { server.Stop() })

	clientCfg := DebugConfig(RoleClient, server.Addr())
	clientCfg.Kind = kind
	clientActor := uuid.New()
	client := NewService(clientActor, nil, nil)
	if err := client.Init(clientCfg); err != nil {
		t.Fatal(err)
	}
	if err := client.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Stop() })

	return server, client, clientActor
}

func testLoopback(t *testing.T, kind Kind) {
	server, client, clientActor := startPair(t, kind)

	conn := next(t, server.Events(), EventConnect)
	hostPeer := next(t, client.Events(), EventConnect).Peer

	if !client.Send(hostPeer, []byte{1, 2, 3}) {
		t.Fatal("client send rejected")
	}
	got := next(t, server.Events(), EventPayload)
	if got.Peer != conn.Peer || !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Errorf("server received %+v", got)
	}
	if actor, ok := server.Actor(got.Peer); !ok || actor != clientActor {
		t.Errorf("actor = %v,%v want %v", actor, ok, clientActor)
	}

	big := bytes.Repeat([]byte{0xab}, 3*MaxFramePayload)
	server.BroadcastExcept(replication.NoPeer, big)
	if echoed := next(t, client.Events(), EventPayload); !bytes.Equal(echoed.Payload, big) {
		t.Errorf("client received %d bytes, want %d", len(echoed.Payload), len(big))
	}

	client.Stop()
	if ev := next(t, server.Events(), EventDisconnect); ev.Peer != conn.Peer {
		t.Errorf("disconnect peer = %d, want %d", ev.Peer, conn.Peer)
	}
}

func TestLoopbackTCP(t *testing.T) {
	testLoopback(t, KindTCP)
}

func TestLoopbackWebSocket(t *testing.T) {
	testLoopback(t, KindWebSocket)
}

func TestBroadcastSkipsSender(t *testing.T) {
	server, client, _ := startPair(t, KindTCP)
	conn := next(t, server.Events(), EventConnect)
	next(t, client.Events(), EventConnect)

	server.BroadcastExcept(conn.Peer, []byte{9})
	server.Send(conn.Peer, []byte{1})

	got := next(t, client.Events(), EventPayload)
	if !bytes.Equal(got.Payload, []byte{1}) {
		t.Errorf("first payload = %v, excluded broadcast was delivered", got.Payload)
	}
}

func TestMaxPeers(t *testing.T) {
	cfg := DebugConfig(RoleServer, "127.0.0.1:0")
	cfg.MaxPeers = 1
	server := NewService(uuid.New(), nil, nil)
	server.Init(cfg)
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	defer server.Stop()

	first := NewService(uuid.New(), nil, nil)
	first.Init(DebugConfig(RoleClient, server.Addr()))
	if err := first.Start(); err != nil {
		t.Fatal(err)
	}
	defer first.Stop()
	next(t, server.Events(), EventConnect)

	second := NewService(uuid.New(), nil, nil)
	second.Init(DebugConfig(RoleClient, server.Addr()))
	if err := second.Start(); err != nil {
		t.Fatal(err)
	}
	defer second.Stop()

	// The rejected connection is closed by the server
	next(t, second.Events(), EventDisconnect)
	if n := server.PeerCount(); n != 1 {
		t.Errorf("server peers = %d, want 1", n)
	}
}

func TestDisabledService(t *testing.T) {
	s := NewService(uuid.New(), nil, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if s.IsRunning() || s.PeerCount() != 0 || s.Send(1, []byte{1}) {
		t.Error("disabled service is active")
	}
	s.BroadcastExcept(replication.NoPeer, []byte{1})
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal("second Stop failed")
	}
}
