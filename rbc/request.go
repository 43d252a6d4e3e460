package rbc

import (
	"sync"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/rbc/merkletree"
)

type (
	// ValRequest carries the shard of receiver with its merkle path
	ValRequest struct {
		RootHash merkletree.RootHash
		Data     []byte
		RootPath merkletree.RootPath
		Indexes  []int64
	}

	// EchoRequest relays the shard of sender
	EchoRequest struct {
		ValRequest
	}

	ReadyRequest struct {
		RootHash merkletree.RootHash
	}
)

// It means it is abstracted as Request interface (hbbft/request.go)
func (r ValRequest) Recv()   {}
func (r EchoRequest) Recv()  {}
func (r ReadyRequest) Recv() {}

// Received request
type (
	EchoReqRepository struct {
		lock sync.RWMutex
		recv map[hbbft.Address]*EchoRequest
	}

	ReadyReqRepository struct {
		lock sync.RWMutex
		recv map[hbbft.Address]*ReadyRequest
	}
)

func NewEchoReqRepository() *EchoReqRepository {
	return &EchoReqRepository{
		recv: make(map[hbbft.Address]*EchoRequest),
	}
}

func (r *EchoReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	echoReq, ok := req.(*EchoRequest)
	if !ok {
		return ErrInvalidType
	}
	r.recv[addr] = echoReq
	return nil
}

func (r *EchoReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.recv[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *EchoReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.recv {
		reqList = append(reqList, request)
	}
	return reqList
}

func NewReadyReqRepository() *ReadyReqRepository {
	return &ReadyReqRepository{
		recv: make(map[hbbft.Address]*ReadyRequest),
	}
}

func (r *ReadyReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	readyReq, ok := req.(*ReadyRequest)
	if !ok {
		return ErrInvalidType
	}
	r.recv[addr] = readyReq
	return nil
}

func (r *ReadyReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.recv[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *ReadyReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.recv {
		reqList = append(reqList, request)
	}
	return reqList
}
