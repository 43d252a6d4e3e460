package honeybadger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/acs"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/tpke"
)

type ACS interface {
	HandleInput(data []byte) (acs.Step, error)
	HandleMessage(sender hbbft.Member, msg *pb.Message) (acs.Step, error)
	Done() bool
	Terminated() bool
}

type acsRepository struct {
	lock  sync.RWMutex
	items map[hbbft.Epoch]ACS
}

func newACSRepository() *acsRepository {
	return &acsRepository{
		lock:  sync.RWMutex{},
		items: make(map[hbbft.Epoch]ACS),
	}
}

func (r *acsRepository) save(epoch hbbft.Epoch, instance ACS) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, ok := r.items[epoch]
	if ok {
		return errors.New(fmt.Sprintf("acs instance already exist with epoch [%d]", epoch))
	}
	r.items[epoch] = instance
	return nil
}

func (r *acsRepository) find(epoch hbbft.Epoch) (ACS, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	result, ok := r.items[epoch]
	return result, ok
}

func (r *acsRepository) delete(epoch hbbft.Epoch) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.items, epoch)
}

// epochs returns saved epochs in increasing order
func (r *acsRepository) epochs() []hbbft.Epoch {
	r.lock.RLock()
	defer r.lock.RUnlock()

	epochs := make([]hbbft.Epoch, 0, len(r.items))
	for epoch := range r.items {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool {
		return epochs[i] < epochs[j]
	})
	return epochs
}

// ACSFactory helps create ACS instance easily. To create ACS, we need lots of DI
// And for the ease of creating ACS, ACSFactory have components which is need to
// create ACS
type ACSFactory interface {
	Create(epoch hbbft.Epoch) (ACS, error)
}

type DefaultACSFactory struct {
	n         int
	f         int
	acsOwner  hbbft.Member
	memberMap *hbbft.MemberMap
	signer    tpke.ThresholdSigner
}

func NewDefaultACSFactory(
	n int,
	f int,
	acsOwner hbbft.Member,
	memberMap *hbbft.MemberMap,
	signer tpke.ThresholdSigner,
) *DefaultACSFactory {
	return &DefaultACSFactory{
		n:         n,
		f:         f,
		acsOwner:  acsOwner,
		memberMap: memberMap,
		signer:    signer,
	}
}

func (f *DefaultACSFactory) Create(epoch hbbft.Epoch) (ACS, error) {
	return acs.New(f.n, f.f, epoch, f.acsOwner, f.memberMap, f.signer)
}
