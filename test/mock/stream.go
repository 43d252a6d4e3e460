package mock

import (
	"errors"

	"github.com/DE-labtory/hbbft/pb"
)

var ErrStreamClosed = errors.New("stream closed")

// StreamWrapper echoes sent messages back to Recv
type StreamWrapper struct {
	InternalChan chan *pb.Message
	CloseChan    chan struct{}
	done         chan struct{}
}

func NewStreamWrapper() *StreamWrapper {
	return &StreamWrapper{
		InternalChan: make(chan *pb.Message),
		CloseChan:    make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

func (c *StreamWrapper) Send(msg *pb.Message) error {
	select {
	case c.InternalChan <- msg:
		return nil
	case <-c.done:
		return ErrStreamClosed
	}
}

func (c *StreamWrapper) Recv() (*pb.Message, error) {
	select {
	case m := <-c.InternalChan:
		return m, nil
	case <-c.done:
		return nil, ErrStreamClosed
	}
}

func (c *StreamWrapper) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	c.CloseChan <- struct{}{}
}
