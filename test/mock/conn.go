package mock

import (
	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
)

type Connection struct {
	ConnId   hbbft.ConnID
	Addr     hbbft.Address
	SendFunc func(msg pb.Message, successCallBack func(interface{}), errCallBack func(error))
}

func (c *Connection) Send(msg pb.Message, successCallBack func(interface{}), errCallBack func(error)) {
	if c.SendFunc != nil {
		c.SendFunc(msg, successCallBack, errCallBack)
	}
}
func (c *Connection) Ip() hbbft.Address {
	return c.Addr
}
func (c *Connection) Id() hbbft.ConnID {
	return c.ConnId
}
func (c *Connection) Close() {}
func (c *Connection) Start() error {
	return nil
}
func (c *Connection) Handle(handler hbbft.Handler) {}
