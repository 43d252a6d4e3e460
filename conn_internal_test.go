package hbbft

import (
	"context"
	"testing"

	"github.com/DE-labtory/hbbft/pb"
)

type mockStreamWrapper struct{}

func (c *mockStreamWrapper) Send(msg *pb.Message) error {
	return nil
}

func (c *mockStreamWrapper) Recv() (*pb.Message, error) {
	return nil, nil
}

func (c *mockStreamWrapper) Close() {}

func TestConnectionPool_Add(t *testing.T) {
	p := NewConnectionPool()
	conn, _ := NewConnection(Address{"127.0.0.1", 8080}, "Connection", &mockStreamWrapper{})
	p.Add("Connection1", conn)
	for r := range p.connMap {
		if r != "Connection1" {
			t.Fatalf("expected connection id is %s, but got %s", "Connection1", r)
		}
	}
	if len(p.connMap) != 1 {
		t.Fatalf("expected connection length is %d, but got %d", 1, len(p.connMap))
	}
}

func TestConnectionPool_Remove(t *testing.T) {
	p := NewConnectionPool()
	conn, _ := NewConnection(Address{"127.0.0.1", 8080}, "Connection", &mockStreamWrapper{})
	p.Add("Connection1", conn)
	p.Add("Connection2", conn)
	p.Add("Connection3", conn)
	p.Remove("Connection1")
	if _, ok := p.connMap["Connection1"]; ok {
		t.Fatalf("expected Connection1 deleted, but still exist")
	}
	if len(p.connMap) != 2 {
		t.Fatalf("expected connection length is %d, but got %d", 2, len(p.connMap))
	}
}

func TestConnectionPool_SendTo_Unknown(t *testing.T) {
	p := NewConnectionPool()
	if err := p.SendTo("unknown", pb.Message{}); err != ErrNoConnection {
		t.Fatalf("expected error is %s, but got %v", ErrNoConnection, err)
	}
}

func TestGrpcConnection_verify(t *testing.T) {
	conn := &GrpcConnection{}
	tests := []struct {
		msg      *pb.Message
		expected bool
	}{
		{msg: nil, expected: false},
		{msg: &pb.Message{Sender: "127.0.0.1:8000"}, expected: false},
		{msg: &pb.Message{Payload: &pb.Message_Dec{Dec: &pb.DEC{}}}, expected: false},
		{msg: &pb.Message{Sender: "127.0.0.1:8000", Payload: &pb.Message_Dec{Dec: &pb.DEC{}}}, expected: true},
	}
	for i, test := range tests {
		if result := conn.verify(test.msg); result != test.expected {
			t.Fatalf("test[%d] expected verify result is %v, but got %v", i, test.expected, result)
		}
	}
}

func TestServerStream_Close(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &serverStream{cancel: cancel}

	stream.Close()
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected MessageStream handler released on close")
	}
}
