package hbbft

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var ErrInvalidAddress = errors.New("invalid address format")

type Address struct {
	Ip   string
	Port uint16
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Ip, a.Port)
}

func ToAddress(addr string) (Address, error) {
	idx := strings.LastIndex(addr, ":")
	if idx <= 0 || idx == len(addr)-1 {
		return Address{}, ErrInvalidAddress
	}
	port, err := strconv.ParseUint(addr[idx+1:], 10, 16)
	if err != nil {
		return Address{}, ErrInvalidAddress
	}

	return Address{
		Ip:   addr[:idx],
		Port: uint16(port),
	}, nil
}

// Member contains node information who participate in the network
type Member struct {
	Address Address
}

func NewMember(host string, port uint16) *Member {
	return &Member{
		Address: Address{Ip: host, Port: port},
	}
}

func NewMemberWithAddress(addr Address) *Member {
	return &Member{Address: addr}
}

// ID is the identity of member used on the wire and for ordering
func (m Member) ID() string {
	return m.Address.String()
}

// Less reports whether m is ordered before other in the validator set
func (m Member) Less(other Member) bool {
	return m.ID() < other.ID()
}

// MemberMap manages members information. The validator set is fixed after
// construction, every member has a stable index given by the order of ids.
type MemberMap struct {
	lock    sync.RWMutex
	members map[Address]*Member
	sorted  []Member
}

func NewMemberMap(members ...Member) *MemberMap {
	m := &MemberMap{
		members: make(map[Address]*Member),
		lock:    sync.RWMutex{},
	}
	for i := range members {
		m.add(members[i])
	}
	return m
}

// Members returns current members ordered by id
func (m *MemberMap) Members() []Member {
	m.lock.RLock()
	defer m.lock.RUnlock()

	members := make([]Member, len(m.sorted))
	copy(members, m.sorted)
	return members
}

func (m *MemberMap) Member(addr Address) (Member, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	member, ok := m.members[addr]
	if !ok {
		return Member{}, false
	}
	return *member, true
}

// MemberByID finds member with its wire id
func (m *MemberMap) MemberByID(id string) (Member, bool) {
	addr, err := ToAddress(id)
	if err != nil {
		return Member{}, false
	}
	return m.Member(addr)
}

// Index returns the position of member in the ordered validator set,
// -1 when the address is not a member
func (m *MemberMap) Index(addr Address) int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i := sort.Search(len(m.sorted), func(i int) bool {
		return m.sorted[i].ID() >= addr.String()
	})
	if i < len(m.sorted) && m.sorted[i].Address == addr {
		return i
	}
	return -1
}

func (m *MemberMap) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.sorted)
}

func (m *MemberMap) Add(member *Member) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.add(*member)
}

func (m *MemberMap) Del(addr Address) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.members[addr]; !ok {
		return
	}
	delete(m.members, addr)
	m.resort()
}

func (m *MemberMap) add(member Member) {
	m.members[member.Address] = &member
	m.resort()
}

func (m *MemberMap) resort() {
	sorted := make([]Member, 0, len(m.members))
	for _, member := range m.members {
		sorted = append(sorted, *member)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})
	m.sorted = sorted
}
