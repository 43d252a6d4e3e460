package hbbft

type Request interface {
	Recv()
}

type RequestRepository interface {
	Save(addr Address, req Request) error
	Find(addr Address) (Request, error)
	FindAll() []Request
}

type IncomingRequestRepository interface {
	Save(round uint64, addr Address, req Request)
	Find(round uint64) []*IncomingRequest
	Delete(round uint64)
	Len() int
}

// IncomingRequest is a request received from a member which is already
// in a later round. It is saved and handled when the round is reached.
type IncomingRequest struct {
	Round uint64
	Addr  Address
	Req   Request
}
