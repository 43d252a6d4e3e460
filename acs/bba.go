package acs

import (
	"sync"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/bba"
	"github.com/DE-labtory/hbbft/pb"
)

type BBA interface {
	HandleInput(val hbbft.Binary) (bba.Step, error)
	HandleMessage(sender hbbft.Member, msg *pb.BBA) (bba.Step, error)
	AcceptInput() bool
	Terminated() bool
}

type BBARepository struct {
	lock   sync.RWMutex
	bbaMap map[hbbft.Member]BBA
}

func NewBBARepository() *BBARepository {
	return &BBARepository{
		lock:   sync.RWMutex{},
		bbaMap: make(map[hbbft.Member]BBA),
	}
}

func (r *BBARepository) Save(mem hbbft.Member, bba BBA) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.bbaMap[mem] = bba
}

func (r *BBARepository) Find(mem hbbft.Member) (BBA, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	bba, ok := r.bbaMap[mem]
	if !ok {
		return nil, ErrNoMemberMatchingRequest
	}
	return bba, nil
}

func (r *BBARepository) FindAll() []BBA {
	r.lock.RLock()
	defer r.lock.RUnlock()

	bbaList := make([]BBA, 0)
	for _, bba := range r.bbaMap {
		bbaList = append(bbaList, bba)
	}
	return bbaList
}
