package hbbft_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/test/util"
)

type mockHandler struct {
	ServeRequestFunc func(msg hbbft.Message)
}

func (h *mockHandler) ServeRequest(msg hbbft.Message) {
	h.ServeRequestFunc(msg)
}

func TestGrpcServer(t *testing.T) {
	//
	// setup mock handler
	//
	done := make(chan struct{}, 1)
	handler := &mockHandler{}
	handler.ServeRequestFunc = func(msg hbbft.Message) {
		if msg.GetRbc().Type != pb.RBC_VAL {
			t.Errorf("expected message type is %s, but got %s", pb.RBC_VAL, msg.GetRbc().Type)
		}
		if !bytes.Equal(msg.GetRbc().Payload, []byte("kim")) {
			t.Errorf("expected message payload is %s, but got %s", "kim", string(msg.GetRbc().Payload))
		}
		done <- struct{}{}
	}

	//
	// create new grpc server
	//
	onConnection := func(conn hbbft.Connection) {
		t.Log("[server] on connection")
		conn.Handle(handler)
		if err := conn.Start(); err != nil {
			conn.Close()
		}
	}
	addr := hbbft.Address{Ip: "127.0.0.1", Port: util.GetAvailablePort(7771)}
	server := hbbft.NewServer(addr)
	server.OnConn(onConnection)
	go server.Listen()
	defer server.Stop()

	//
	// create new grpc client
	//
	cli := hbbft.NewClient()
	conn, err := cli.Dial(hbbft.DialOpts{
		Addr:    addr,
		Timeout: hbbft.DefaultDialTimeout,
	})
	if err != nil {
		t.Fatalf("dial failed with error: %s", err.Error())
	}
	defer conn.Close()

	go func() {
		if err := conn.Start(); err != nil {
			conn.Close()
		}
	}()

	conn.Send(pb.Message{
		Sender: "127.0.0.1:9000",
		Payload: &pb.Message_Rbc{
			Rbc: &pb.RBC{
				Payload: []byte("kim"),
				Type:    pb.RBC_VAL,
			},
		},
	}, nil, nil)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected message handled by server, but timeout")
	}
}
