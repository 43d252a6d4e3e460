package acs

import (
	"sync"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/rbc"
)

type RBC interface {
	HandleInput(data []byte) (rbc.Step, error)
	HandleMessage(sender hbbft.Member, msg *pb.RBC) (rbc.Step, error)
	Terminated() bool
}

type RBCRepository struct {
	lock   sync.RWMutex
	rbcMap map[hbbft.Member]RBC
}

func NewRBCRepository() *RBCRepository {
	return &RBCRepository{
		lock:   sync.RWMutex{},
		rbcMap: make(map[hbbft.Member]RBC),
	}
}

func (r *RBCRepository) Save(mem hbbft.Member, rbc RBC) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rbcMap[mem] = rbc
}

func (r *RBCRepository) Find(mem hbbft.Member) (RBC, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rbc, ok := r.rbcMap[mem]
	if !ok {
		return nil, ErrNoMemberMatchingRequest
	}
	return rbc, nil
}

func (r *RBCRepository) FindAll() []RBC {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rbcList := make([]RBC, 0)
	for _, rbc := range r.rbcMap {
		rbcList = append(rbcList, rbc)
	}
	return rbcList
}
