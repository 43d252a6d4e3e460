package acs

import (
	"sync"

	"github.com/DE-labtory/hbbft"
)

type binaryStateMap struct {
	lock  sync.RWMutex
	items map[hbbft.Member]*hbbft.BinaryState
}

func newBinaryStateMap() *binaryStateMap {
	return &binaryStateMap{
		lock:  sync.RWMutex{},
		items: make(map[hbbft.Member]*hbbft.BinaryState),
	}
}

func (b *binaryStateMap) set(member hbbft.Member, bin *hbbft.BinaryState) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.items[member] = bin
}

func (b *binaryStateMap) item(member hbbft.Member) *hbbft.BinaryState {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.items[member]
}

func (b *binaryStateMap) exist(member hbbft.Member) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	_, ok := b.items[member]
	return ok
}

// count returns the number of defined states, and the number of states
// which are one
func (b *binaryStateMap) count() (int, int) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	done, one := 0, 0
	for _, state := range b.items {
		if state.Undefined() {
			continue
		}
		done++
		if state.Value() {
			one++
		}
	}
	return done, one
}

// broadcastDataMap has an item only for delivered broadcast, delivered data
// can be empty
type broadcastDataMap struct {
	lock  sync.RWMutex
	items map[hbbft.Member][]byte
}

func newBroadcastDataMap() *broadcastDataMap {
	return &broadcastDataMap{
		lock:  sync.RWMutex{},
		items: make(map[hbbft.Member][]byte),
	}
}

func (b *broadcastDataMap) set(member hbbft.Member, data []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.items[member] = data
}

func (b *broadcastDataMap) item(member hbbft.Member) []byte {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.items[member]
}

func (b *broadcastDataMap) exist(member hbbft.Member) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	_, ok := b.items[member]
	return ok
}
