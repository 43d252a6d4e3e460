package bba

import (
	"sync"

	"github.com/DE-labtory/hbbft"
)

type (
	BvalRequest struct {
		Value hbbft.Binary
	}

	AuxRequest struct {
		Value hbbft.Binary
	}

	// ConfRequest carries bin values of sender when it finished AUX step
	ConfRequest struct {
		Values []hbbft.Binary
	}

	// TermRequest tells sender decided Value, it counts as BVAL, AUX and
	// CONF of sender in every later round
	TermRequest struct {
		Value hbbft.Binary
	}
)

func (r BvalRequest) Recv() {}
func (r AuxRequest) Recv()  {}
func (r ConfRequest) Recv() {}
func (r TermRequest) Recv() {}

type (
	bvalReqRepository struct {
		lock   sync.RWMutex
		reqMap map[hbbft.Address]*BvalRequest
	}

	auxReqRepository struct {
		lock   sync.RWMutex
		reqMap map[hbbft.Address]*AuxRequest
	}

	confReqRepository struct {
		lock   sync.RWMutex
		reqMap map[hbbft.Address]*ConfRequest
	}

	termReqRepository struct {
		lock   sync.RWMutex
		reqMap map[hbbft.Address]*TermRequest
	}
)

func newBvalReqRepository() *bvalReqRepository {
	return &bvalReqRepository{
		reqMap: make(map[hbbft.Address]*BvalRequest),
	}
}

func (r *bvalReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	bvalReq, ok := req.(*BvalRequest)
	if !ok {
		return ErrInvalidType
	}
	r.reqMap[addr] = bvalReq
	return nil
}

func (r *bvalReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.reqMap[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *bvalReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.reqMap {
		reqList = append(reqList, request)
	}
	return reqList
}

func newAuxReqRepository() *auxReqRepository {
	return &auxReqRepository{
		reqMap: make(map[hbbft.Address]*AuxRequest),
	}
}

func (r *auxReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	auxReq, ok := req.(*AuxRequest)
	if !ok {
		return ErrInvalidType
	}
	r.reqMap[addr] = auxReq
	return nil
}

func (r *auxReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.reqMap[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *auxReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.reqMap {
		reqList = append(reqList, request)
	}
	return reqList
}

func newConfReqRepository() *confReqRepository {
	return &confReqRepository{
		reqMap: make(map[hbbft.Address]*ConfRequest),
	}
}

func (r *confReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	confReq, ok := req.(*ConfRequest)
	if !ok {
		return ErrInvalidType
	}
	r.reqMap[addr] = confReq
	return nil
}

func (r *confReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.reqMap[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *confReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.reqMap {
		reqList = append(reqList, request)
	}
	return reqList
}

func newTermReqRepository() *termReqRepository {
	return &termReqRepository{
		reqMap: make(map[hbbft.Address]*TermRequest),
	}
}

func (r *termReqRepository) Save(addr hbbft.Address, req hbbft.Request) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	termReq, ok := req.(*TermRequest)
	if !ok {
		return ErrInvalidType
	}
	r.reqMap[addr] = termReq
	return nil
}

func (r *termReqRepository) Find(addr hbbft.Address) (hbbft.Request, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	req, ok := r.reqMap[addr]
	if !ok {
		return nil, ErrNoResult
	}
	return req, nil
}

func (r *termReqRepository) FindAll() []hbbft.Request {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reqList := make([]hbbft.Request, 0)
	for _, request := range r.reqMap {
		reqList = append(reqList, request)
	}
	return reqList
}

// defaultIncomingReqRepository saves incoming messages sent from a node that
// is already in a later round. These request will be saved and handled when
// the round is reached.
type defaultIncomingReqRepository struct {
	lock    sync.RWMutex
	reqList []*hbbft.IncomingRequest
}

func newDefaultIncomingRequestRepository() *defaultIncomingReqRepository {
	return &defaultIncomingReqRepository{
		lock:    sync.RWMutex{},
		reqList: make([]*hbbft.IncomingRequest, 0),
	}
}

func (r *defaultIncomingReqRepository) Save(round uint64, addr hbbft.Address, req hbbft.Request) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.reqList = append(r.reqList, &hbbft.IncomingRequest{
		Round: round,
		Addr:  addr,
		Req:   req,
	})
}

// Find returns requests of round in the order they were saved
func (r *defaultIncomingReqRepository) Find(round uint64) []*hbbft.IncomingRequest {
	r.lock.RLock()
	defer r.lock.RUnlock()

	result := make([]*hbbft.IncomingRequest, 0)
	for _, ir := range r.reqList {
		if ir.Round != round {
			continue
		}
		result = append(result, ir)
	}
	return result
}

// Delete removes requests of round and every earlier round
func (r *defaultIncomingReqRepository) Delete(round uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	result := make([]*hbbft.IncomingRequest, 0)
	for _, ir := range r.reqList {
		if ir.Round <= round {
			continue
		}
		result = append(result, ir)
	}
	r.reqList = result
}

func (r *defaultIncomingReqRepository) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.reqList)
}
