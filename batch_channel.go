package hbbft

type BatchSender interface {
	Send(batch Batch)
}

type BatchReceiver interface {
	Receive() <-chan Batch
}

type BatchChannel struct {
	buffer chan Batch
}

func NewBatchChannel(size int) *BatchChannel {
	return &BatchChannel{
		buffer: make(chan Batch, size),
	}
}

func (c *BatchChannel) Send(batch Batch) {
	c.buffer <- batch
}

func (c *BatchChannel) Receive() <-chan Batch {
	return c.buffer
}

// SendUntil blocks until batch is sent or done is closed, it reports
// whether batch is sent
func (c *BatchChannel) SendUntil(batch Batch, done <-chan struct{}) bool {
	select {
	case c.buffer <- batch:
		return true
	case <-done:
		return false
	}
}
