package hbbft

import (
	"context"
	"net"
	"time"

	"github.com/DE-labtory/hbbft/pb"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

const DefaultDialTimeout = 3 * time.Second

// StreamWrapper is one side of a MessageStream, Close releases it
type StreamWrapper interface {
	Send(message *pb.Message) error
	Recv() (*pb.Message, error)
	Close()
}

// clientStream owns grpc connection it is dialed with
type clientStream struct {
	pb.StreamService_MessageStreamClient
	conn   *grpc.ClientConn
	cancel context.CancelFunc
}

func newClientStream(conn *grpc.ClientConn) (*clientStream, error) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := pb.NewStreamServiceClient(conn).MessageStream(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	return &clientStream{
		StreamService_MessageStreamClient: stream,
		conn:                              conn,
		cancel:                            cancel,
	}, nil
}

func (s *clientStream) Close() {
	s.CloseSend()
	s.cancel()
	s.conn.Close()
}

// serverStream releases MessageStream handler on Close
type serverStream struct {
	pb.StreamService_MessageStreamServer
	cancel context.CancelFunc
}

func (s *serverStream) Close() {
	s.cancel()
}

type ConnHandler func(conn Connection)
type ErrHandler func(err error)

type GrpcServer struct {
	connHandler ConnHandler
	errHandler  ErrHandler
	addr        Address
	server      *grpc.Server
	lis         net.Listener
}

func NewServer(addr Address) *GrpcServer {
	return &GrpcServer{
		addr: addr,
	}
}

// MessageStream handle request to connection from remote peer. Stream is
// alive until the connection made with it is closed.
func (s *GrpcServer) MessageStream(streamServer pb.StreamService_MessageStreamServer) error {
	ctx, cancel := context.WithCancel(streamServer.Context())
	defer cancel()

	stream := &serverStream{
		StreamService_MessageStreamServer: streamServer,
		cancel:                            cancel,
	}

	conn, err := NewConnection(remoteAddress(streamServer.Context()), uuid.New().String(), stream)
	if err != nil {
		s.onErr(err)
		return err
	}

	if s.connHandler != nil {
		s.connHandler(conn)
	}

	<-ctx.Done()
	return nil
}

func (s *GrpcServer) OnConn(handler ConnHandler) {
	if handler == nil {
		return
	}
	s.connHandler = handler
}

func (s *GrpcServer) OnErr(handler ErrHandler) {
	if handler == nil {
		return
	}
	s.errHandler = handler
}

// Listen blocks until server is stopped
func (s *GrpcServer) Listen() {
	lis, err := net.Listen("tcp", s.addr.String())
	if err != nil {
		s.onErr(err)
		return
	}

	server := grpc.NewServer()
	pb.RegisterStreamServiceServer(server, s)

	s.lis = lis
	s.server = server

	if err := server.Serve(lis); err != nil {
		s.onErr(err)
	}
}

func (s *GrpcServer) Stop() {
	if s.server != nil {
		s.server.Stop()
	}
	if s.lis != nil {
		s.lis.Close()
	}
}

func (s *GrpcServer) onErr(err error) {
	if s.errHandler != nil {
		s.errHandler(err)
	}
}

func remoteAddress(ctx context.Context) Address {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return Address{}
	}
	addr, err := ToAddress(p.Addr.String())
	if err != nil {
		return Address{}
	}
	return addr
}

type DialOpts struct {
	// Addr is target address which grpc client is going to dial
	Addr Address

	// Duration for which to block while established a new connection
	Timeout time.Duration
}

type GrpcClient struct{}

func NewClient() *GrpcClient {
	return &GrpcClient{}
}

func (c GrpcClient) Dial(opts DialOpts) (Connection, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	gconn, err := grpc.DialContext(ctx, opts.Addr.String(), grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, err
	}

	stream, err := newClientStream(gconn)
	if err != nil {
		gconn.Close()
		return nil, err
	}

	return NewConnection(opts.Addr, uuid.New().String(), stream)
}
