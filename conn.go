package hbbft

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/iLogger"
)

type ConnID = string

var ErrNoConnection = errors.New("no connection with id")

// message used in HBBFT
type innerMessage struct {
	Message   *pb.Message
	OnErr     func(error)
	OnSuccess func(interface{})
}

// message used with other nodes
type Message struct {
	*pb.Message
	Conn Connection
}

// request handler
type Handler interface {
	ServeRequest(msg Message)
}

type Connection interface {
	Send(msg pb.Message, successCallBack func(interface{}), errCallBack func(error))
	Ip() Address
	Id() ConnID
	Close()
	Start() error
	Handle(handler Handler)
}

type GrpcConnection struct {
	id            ConnID
	ip            Address
	streamWrapper StreamWrapper
	stopFlag      int32
	handler       Handler
	outChan       chan *innerMessage
	readChan      chan *pb.Message
	stopChan      chan struct{}
	sync.RWMutex
}

func NewConnection(ip Address, id ConnID, streamWrapper StreamWrapper) (Connection, error) {
	if streamWrapper == nil {
		return nil, errors.New("fail to create connection ! : streamWrapper is nil")
	}

	return &GrpcConnection{
		id:            id,
		ip:            ip,
		streamWrapper: streamWrapper,
		outChan:       make(chan *innerMessage, 200),
		readChan:      make(chan *pb.Message, 200),
		stopChan:      make(chan struct{}, 1),
	}, nil
}

func (conn *GrpcConnection) Send(msg pb.Message, successCallBack func(interface{}), errCallBack func(error)) {
	if conn.isDie() {
		if errCallBack != nil {
			go errCallBack(fmt.Errorf("connection %s is closed", conn.id))
		}
		return
	}

	m := &innerMessage{
		Message:   &msg,
		OnErr:     errCallBack,
		OnSuccess: successCallBack,
	}

	conn.outChan <- m
}

func (conn *GrpcConnection) Ip() Address {
	return conn.ip
}

func (conn *GrpcConnection) Id() ConnID {
	return conn.id
}

func (conn *GrpcConnection) Close() {
	if isFirst := atomic.CompareAndSwapInt32(&conn.stopFlag, int32(0), int32(1)); !isFirst {
		return
	}

	conn.stopChan <- struct{}{}
	conn.Lock()
	defer conn.Unlock()

	conn.streamWrapper.Close()
}

func (conn *GrpcConnection) Start() error {
	errChan := make(chan error, 1)

	go conn.readStream(errChan)
	go conn.writeStream()

	for !conn.isDie() {
		select {
		case stop := <-conn.stopChan:
			conn.stopChan <- stop
			return nil
		case err := <-errChan:
			return err
		case message := <-conn.readChan:
			if !conn.verify(message) {
				iLogger.Debugf(nil, "[Connection] drop invalid envelope from %s", conn.id)
				continue
			}
			conn.RLock()
			handler := conn.handler
			conn.RUnlock()
			if handler != nil {
				handler.ServeRequest(Message{Message: message, Conn: conn})
			}
		}
	}

	return nil
}

func (conn *GrpcConnection) Handle(handler Handler) {
	conn.Lock()
	defer conn.Unlock()

	conn.handler = handler
}

// verify drops envelopes which can never be routed to a protocol instance
func (conn *GrpcConnection) verify(envelope *pb.Message) bool {
	if envelope == nil || envelope.Payload == nil {
		return false
	}
	return envelope.Sender != ""
}

func (conn *GrpcConnection) isDie() bool {
	return atomic.LoadInt32(&(conn.stopFlag)) == int32(1)
}

func (conn *GrpcConnection) writeStream() {
	for !conn.isDie() {
		select {
		case m := <-conn.outChan:
			err := conn.streamWrapper.Send(m.Message)
			if err != nil {
				if m.OnErr != nil {
					go m.OnErr(err)
				}
			} else {
				if m.OnSuccess != nil {
					go m.OnSuccess("")
				}
			}
		case stop := <-conn.stopChan:
			conn.stopChan <- stop
			return
		}
	}
}

func (conn *GrpcConnection) readStream(errChan chan error) {
	defer func() {
		recover()
	}()

	for !conn.isDie() {
		envelope, err := conn.streamWrapper.Recv()

		if conn.isDie() {
			return
		}

		if err != nil {
			errChan <- err
			return
		}

		conn.readChan <- envelope
	}
}

type Broadcaster interface {
	ShareMessage(msg pb.Message)
	DistributeMessage(msgList []pb.Message)
}

// ConnectionPool keeps outbound connections. Node uses member id as
// connection id, so a message can be targeted to a member.
type ConnectionPool struct {
	lock    sync.RWMutex
	connMap map[ConnID]Connection
}

func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{
		lock:    sync.RWMutex{},
		connMap: make(map[ConnID]Connection),
	}
}

// ShareMessage sends same message to every connection
func (p *ConnectionPool) ShareMessage(msg pb.Message) {
	for _, conn := range p.GetAll() {
		conn.Send(msg, nil, func(err error) {
			iLogger.Errorf(nil, "[ConnectionPool] fail to share message: %s", err.Error())
		})
	}
}

// DistributeMessage sends i-th message to i-th connection in order of id.
// Messages exceeding the number of connections are not sent.
func (p *ConnectionPool) DistributeMessage(msgList []pb.Message) {
	for i, conn := range p.GetAll() {
		if i >= len(msgList) {
			return
		}
		conn.Send(msgList[i], nil, func(err error) {
			iLogger.Errorf(nil, "[ConnectionPool] fail to distribute message: %s", err.Error())
		})
	}
}

func (p *ConnectionPool) SendTo(id ConnID, msg pb.Message) error {
	conn, ok := p.Get(id)
	if !ok {
		return ErrNoConnection
	}
	conn.Send(msg, nil, func(err error) {
		iLogger.Errorf(nil, "[ConnectionPool] fail to send message to %s: %s", id, err.Error())
	})
	return nil
}

func (p *ConnectionPool) Get(id ConnID) (Connection, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	conn, ok := p.connMap[id]
	return conn, ok
}

// GetAll returns connections sorted by id
func (p *ConnectionPool) GetAll() []Connection {
	p.lock.RLock()
	defer p.lock.RUnlock()

	ids := make([]ConnID, 0, len(p.connMap))
	for id := range p.connMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	connList := make([]Connection, 0, len(ids))
	for _, id := range ids {
		connList = append(connList, p.connMap[id])
	}
	return connList
}

func (p *ConnectionPool) Add(id ConnID, conn Connection) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.connMap[id] = conn
}

func (p *ConnectionPool) Remove(id ConnID) {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.connMap, id)
}
