// Go bindings of message.proto, keep both files in sync.

package pb

import (
	context "context"
	fmt "fmt"

	proto "github.com/golang/protobuf/proto"
	grpc "google.golang.org/grpc"
)

// Reference imports to suppress errors if they are not otherwise used.
var _ = proto.Marshal
var _ = fmt.Errorf

// This is a compile-time assertion to ensure that this file
// is compatible with the proto package it is being compiled against.
const _ = proto.ProtoPackageIsVersion3

type RBC_Type int32

const (
	RBC_VAL   RBC_Type = 0
	RBC_ECHO  RBC_Type = 1
	RBC_READY RBC_Type = 2
)

var RBC_Type_name = map[int32]string{
	0: "VAL",
	1: "ECHO",
	2: "READY",
}

var RBC_Type_value = map[string]int32{
	"VAL":   0,
	"ECHO":  1,
	"READY": 2,
}

func (x RBC_Type) String() string {
	return proto.EnumName(RBC_Type_name, int32(x))
}

type BBA_Type int32

const (
	BBA_BVAL BBA_Type = 0
	BBA_AUX  BBA_Type = 1
	BBA_CONF BBA_Type = 2
	BBA_COIN BBA_Type = 3
	BBA_TERM BBA_Type = 4
)

var BBA_Type_name = map[int32]string{
	0: "BVAL",
	1: "AUX",
	2: "CONF",
	3: "COIN",
	4: "TERM",
}

var BBA_Type_value = map[string]int32{
	"BVAL": 0,
	"AUX":  1,
	"CONF": 2,
	"COIN": 3,
	"TERM": 4,
}

func (x BBA_Type) String() string {
	return proto.EnumName(BBA_Type_name, int32(x))
}

type Message struct {
	Sender string `protobuf:"bytes,1,opt,name=sender,proto3" json:"sender,omitempty"`
	Epoch  uint64 `protobuf:"varint,2,opt,name=epoch,proto3" json:"epoch,omitempty"`
	// Types that are valid to be assigned to Payload:
	//	*Message_Rbc
	//	*Message_Bba
	//	*Message_Dec
	Payload              isMessage_Payload `protobuf_oneof:"payload"`
	XXX_NoUnkeyedLiteral struct{}          `json:"-"`
	XXX_unrecognized     []byte            `json:"-"`
	XXX_sizecache        int32             `json:"-"`
}

func (m *Message) Reset()         { *m = Message{} }
func (m *Message) String() string { return proto.CompactTextString(m) }
func (*Message) ProtoMessage()    {}

func (m *Message) XXX_Unmarshal(b []byte) error {
	return xxx_messageInfo_Message.Unmarshal(m, b)
}
func (m *Message) XXX_Marshal(b []byte, deterministic bool) ([]byte, error) {
	return xxx_messageInfo_Message.Marshal(b, m, deterministic)
}
func (m *Message) XXX_Merge(src proto.Message) {
	xxx_messageInfo_Message.Merge(m, src)
}
func (m *Message) XXX_Size() int {
	return xxx_messageInfo_Message.Size(m)
}
func (m *Message) XXX_DiscardUnknown() {
	xxx_messageInfo_Message.DiscardUnknown(m)
}

var xxx_messageInfo_Message proto.InternalMessageInfo

type isMessage_Payload interface {
	isMessage_Payload()
}

type Message_Rbc struct {
	Rbc *RBC `protobuf:"bytes,3,opt,name=rbc,proto3,oneof"`
}

type Message_Bba struct {
	Bba *BBA `protobuf:"bytes,4,opt,name=bba,proto3,oneof"`
}

type Message_Dec struct {
	Dec *DEC `protobuf:"bytes,5,opt,name=dec,proto3,oneof"`
}

func (*Message_Rbc) isMessage_Payload() {}

func (*Message_Bba) isMessage_Payload() {}

func (*Message_Dec) isMessage_Payload() {}

func (m *Message) GetPayload() isMessage_Payload {
	if m != nil {
		return m.Payload
	}
	return nil
}

func (m *Message) GetSender() string {
	if m != nil {
		return m.Sender
	}
	return ""
}

func (m *Message) GetEpoch() uint64 {
	if m != nil {
		return m.Epoch
	}
	return 0
}

func (m *Message) GetRbc() *RBC {
	if x, ok := m.GetPayload().(*Message_Rbc); ok {
		return x.Rbc
	}
	return nil
}

func (m *Message) GetBba() *BBA {
	if x, ok := m.GetPayload().(*Message_Bba); ok {
		return x.Bba
	}
	return nil
}

func (m *Message) GetDec() *DEC {
	if x, ok := m.GetPayload().(*Message_Dec); ok {
		return x.Dec
	}
	return nil
}

// XXX_OneofWrappers is for the internal use of the proto package.
func (*Message) XXX_OneofWrappers() []interface{} {
	return []interface{}{
		(*Message_Rbc)(nil),
		(*Message_Bba)(nil),
		(*Message_Dec)(nil),
	}
}

type RBC struct {
	Proposer             string   `protobuf:"bytes,1,opt,name=proposer,proto3" json:"proposer,omitempty"`
	Type                 RBC_Type `protobuf:"varint,2,opt,name=type,proto3,enum=pb.RBC_Type" json:"type,omitempty"`
	Payload              []byte   `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *RBC) Reset()         { *m = RBC{} }
func (m *RBC) String() string { return proto.CompactTextString(m) }
func (*RBC) ProtoMessage()    {}

func (m *RBC) XXX_Unmarshal(b []byte) error {
	return xxx_messageInfo_RBC.Unmarshal(m, b)
}
func (m *RBC) XXX_Marshal(b []byte, deterministic bool) ([]byte, error) {
	return xxx_messageInfo_RBC.Marshal(b, m, deterministic)
}
func (m *RBC) XXX_Merge(src proto.Message) {
	xxx_messageInfo_RBC.Merge(m, src)
}
func (m *RBC) XXX_Size() int {
	return xxx_messageInfo_RBC.Size(m)
}
func (m *RBC) XXX_DiscardUnknown() {
	xxx_messageInfo_RBC.DiscardUnknown(m)
}

var xxx_messageInfo_RBC proto.InternalMessageInfo

func (m *RBC) GetProposer() string {
	if m != nil {
		return m.Proposer
	}
	return ""
}

func (m *RBC) GetType() RBC_Type {
	if m != nil {
		return m.Type
	}
	return RBC_VAL
}

func (m *RBC) GetPayload() []byte {
	if m != nil {
		return m.Payload
	}
	return nil
}

type BBA struct {
	Proposer             string   `protobuf:"bytes,1,opt,name=proposer,proto3" json:"proposer,omitempty"`
	Round                uint64   `protobuf:"varint,2,opt,name=round,proto3" json:"round,omitempty"`
	Type                 BBA_Type `protobuf:"varint,3,opt,name=type,proto3,enum=pb.BBA_Type" json:"type,omitempty"`
	Payload              []byte   `protobuf:"bytes,4,opt,name=payload,proto3" json:"payload,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *BBA) Reset()         { *m = BBA{} }
func (m *BBA) String() string { return proto.CompactTextString(m) }
func (*BBA) ProtoMessage()    {}

func (m *BBA) XXX_Unmarshal(b []byte) error {
	return xxx_messageInfo_BBA.Unmarshal(m, b)
}
func (m *BBA) XXX_Marshal(b []byte, deterministic bool) ([]byte, error) {
	return xxx_messageInfo_BBA.Marshal(b, m, deterministic)
}
func (m *BBA) XXX_Merge(src proto.Message) {
	xxx_messageInfo_BBA.Merge(m, src)
}
func (m *BBA) XXX_Size() int {
	return xxx_messageInfo_BBA.Size(m)
}
func (m *BBA) XXX_DiscardUnknown() {
	xxx_messageInfo_BBA.DiscardUnknown(m)
}

var xxx_messageInfo_BBA proto.InternalMessageInfo

func (m *BBA) GetProposer() string {
	if m != nil {
		return m.Proposer
	}
	return ""
}

func (m *BBA) GetRound() uint64 {
	if m != nil {
		return m.Round
	}
	return 0
}

func (m *BBA) GetType() BBA_Type {
	if m != nil {
		return m.Type
	}
	return BBA_BVAL
}

func (m *BBA) GetPayload() []byte {
	if m != nil {
		return m.Payload
	}
	return nil
}

type DEC struct {
	Proposer             string   `protobuf:"bytes,1,opt,name=proposer,proto3" json:"proposer,omitempty"`
	Payload              []byte   `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *DEC) Reset()         { *m = DEC{} }
func (m *DEC) String() string { return proto.CompactTextString(m) }
func (*DEC) ProtoMessage()    {}

func (m *DEC) XXX_Unmarshal(b []byte) error {
	return xxx_messageInfo_DEC.Unmarshal(m, b)
}
func (m *DEC) XXX_Marshal(b []byte, deterministic bool) ([]byte, error) {
	return xxx_messageInfo_DEC.Marshal(b, m, deterministic)
}
func (m *DEC) XXX_Merge(src proto.Message) {
	xxx_messageInfo_DEC.Merge(m, src)
}
func (m *DEC) XXX_Size() int {
	return xxx_messageInfo_DEC.Size(m)
}
func (m *DEC) XXX_DiscardUnknown() {
	xxx_messageInfo_DEC.DiscardUnknown(m)
}

var xxx_messageInfo_DEC proto.InternalMessageInfo

func (m *DEC) GetProposer() string {
	if m != nil {
		return m.Proposer
	}
	return ""
}

func (m *DEC) GetPayload() []byte {
	if m != nil {
		return m.Payload
	}
	return nil
}

func init() {
	proto.RegisterEnum("pb.RBC_Type", RBC_Type_name, RBC_Type_value)
	proto.RegisterEnum("pb.BBA_Type", BBA_Type_name, BBA_Type_value)
	proto.RegisterType((*Message)(nil), "pb.Message")
	proto.RegisterType((*RBC)(nil), "pb.RBC")
	proto.RegisterType((*BBA)(nil), "pb.BBA")
	proto.RegisterType((*DEC)(nil), "pb.DEC")
}

// Reference imports to suppress errors if they are not otherwise used.
var _ context.Context
var _ grpc.ClientConn

// This is a compile-time assertion to ensure that this file
// is compatible with the grpc package it is being compiled against.
const _ = grpc.SupportPackageIsVersion4

// StreamServiceClient is the client API for StreamService service.
type StreamServiceClient interface {
	MessageStream(ctx context.Context, opts ...grpc.CallOption) (StreamService_MessageStreamClient, error)
}

type streamServiceClient struct {
	cc *grpc.ClientConn
}

func NewStreamServiceClient(cc *grpc.ClientConn) StreamServiceClient {
	return &streamServiceClient{cc}
}

func (c *streamServiceClient) MessageStream(ctx context.Context, opts ...grpc.CallOption) (StreamService_MessageStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &_StreamService_serviceDesc.Streams[0], "/pb.StreamService/MessageStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &streamServiceMessageStreamClient{stream}
	return x, nil
}

type StreamService_MessageStreamClient interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ClientStream
}

type streamServiceMessageStreamClient struct {
	grpc.ClientStream
}

func (x *streamServiceMessageStreamClient) Send(m *Message) error {
	return x.ClientStream.SendMsg(m)
}

func (x *streamServiceMessageStreamClient) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// StreamServiceServer is the server API for StreamService service.
type StreamServiceServer interface {
	MessageStream(StreamService_MessageStreamServer) error
}

func RegisterStreamServiceServer(s *grpc.Server, srv StreamServiceServer) {
	s.RegisterService(&_StreamService_serviceDesc, srv)
}

func _StreamService_MessageStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(StreamServiceServer).MessageStream(&streamServiceMessageStreamServer{stream})
}

type StreamService_MessageStreamServer interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ServerStream
}

type streamServiceMessageStreamServer struct {
	grpc.ServerStream
}

func (x *streamServiceMessageStreamServer) Send(m *Message) error {
	return x.ServerStream.SendMsg(m)
}

func (x *streamServiceMessageStreamServer) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var _StreamService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "pb.StreamService",
	HandlerType: (*StreamServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "MessageStream",
			Handler:       _StreamService_MessageStream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "message.proto",
}
