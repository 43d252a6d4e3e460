package bba

import (
	"sync"

	"github.com/DE-labtory/hbbft"
)

type binarySet struct {
	lock  sync.RWMutex
	items map[hbbft.Binary]bool
}

func newBinarySet(values ...hbbft.Binary) *binarySet {
	s := &binarySet{
		lock:  sync.RWMutex{},
		items: make(map[hbbft.Binary]bool),
	}
	for _, v := range values {
		s.items[v] = true
	}
	return s
}

func (s *binarySet) exist(bin hbbft.Binary) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.items[bin]
	return ok
}

func (s *binarySet) union(bin hbbft.Binary) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.items[bin] = true
}

func (s *binarySet) len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.items)
}

// includes reports whether every value of list is in the set
func (s *binarySet) includes(list []hbbft.Binary) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, bin := range list {
		if _, ok := s.items[bin]; !ok {
			return false
		}
	}
	return true
}

// toList returns values, zero comes first
func (s *binarySet) toList() []hbbft.Binary {
	s.lock.RLock()
	defer s.lock.RUnlock()

	result := make([]hbbft.Binary, 0)
	for _, bin := range []hbbft.Binary{hbbft.Zero, hbbft.One} {
		if s.items[bin] {
			result = append(result, bin)
		}
	}
	return result
}
