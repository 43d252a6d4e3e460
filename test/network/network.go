package network

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/log"
	"github.com/DE-labtory/hbbft/pb"
)

var ErrUnknownNode = errors.New("unknown node")

// Node is a protocol instance of one member driven by the network
type Node interface {
	Member() hbbft.Member
	HandleMessage(sender hbbft.Member, msg *pb.Message) (hbbft.Step, error)
}

// Envelope is a message in flight
type Envelope struct {
	From    hbbft.Member
	To      hbbft.Member
	Message *pb.Message
}

// Adversary controls every message sent by a byzantine member. It returns
// the envelopes delivered instead of env, nil drops it.
type Adversary interface {
	Intercept(env Envelope) []Envelope
}

type AdversaryFunc func(env Envelope) []Envelope

func (f AdversaryFunc) Intercept(env Envelope) []Envelope {
	return f(env)
}

// ReportedFault is a fault with the member who detected it
type ReportedFault struct {
	Reporter hbbft.Member
	hbbft.Fault
}

// Network delivers messages between nodes in random order. Order of
// delivery only depends on seed, so every run with same seed is the same.
type Network struct {
	rand *rand.Rand

	members []hbbft.Member
	nodes   map[string]Node

	queue []Envelope
	// held keeps messages across partition until it is healed
	held      []Envelope
	partition map[string]int

	crashed   map[string]bool
	byzantine map[string]Adversary

	// DuplicateRate is the probability a delivered message is queued again
	DuplicateRate float64

	faults    []ReportedFault
	delivered int
	tracer    *hbbft.MemCacheTracer
}

func New(seed int64, nodes ...Node) *Network {
	n := &Network{
		rand:      rand.New(rand.NewSource(seed)),
		members:   make([]hbbft.Member, 0),
		nodes:     make(map[string]Node),
		queue:     make([]Envelope, 0),
		held:      make([]Envelope, 0),
		crashed:   make(map[string]bool),
		byzantine: make(map[string]Adversary),
		tracer:    hbbft.NewMemCacheTracer(),
	}
	for _, node := range nodes {
		n.members = append(n.members, node.Member())
		n.nodes[node.Member().ID()] = node
	}
	return n
}

func (n *Network) Members() []hbbft.Member {
	return n.members
}

// Crash drops every message sent to or from member
func (n *Network) Crash(member hbbft.Member) {
	n.crashed[member.ID()] = true
}

func (n *Network) SetByzantine(member hbbft.Member, adversary Adversary) {
	n.byzantine[member.ID()] = adversary
}

// Correct reports whether member is neither crashed nor byzantine
func (n *Network) Correct(member hbbft.Member) bool {
	_, byzantine := n.byzantine[member.ID()]
	return !byzantine && !n.crashed[member.ID()]
}

// Partition splits members into groups. Messages between groups are held
// until Heal, members not in any group are in their own group.
func (n *Network) Partition(groups ...[]hbbft.Member) {
	n.partition = make(map[string]int)
	for i, group := range groups {
		for _, member := range group {
			n.partition[member.ID()] = i + 1
		}
	}
}

func (n *Network) Heal() {
	n.partition = nil
	n.queue = append(n.queue, n.held...)
	n.held = make([]Envelope, 0)
}

// Dispatch queues messages of step sent by from, and records its faults
func (n *Network) Dispatch(from hbbft.Member, step hbbft.Step) {
	for _, fault := range step.Faults {
		log.Debug("message", "fault reported", "reporter", from.ID(), "fault", fault.String())
		n.faults = append(n.faults, ReportedFault{Reporter: from, Fault: fault})
	}

	for _, m := range step.Messages {
		for _, to := range n.members {
			if to.Address == from.Address {
				continue
			}
			if !m.Broadcast() && m.Target.Address != to.Address {
				continue
			}
			n.send(Envelope{From: from, To: to, Message: m.Message})
		}
	}
}

// Inject queues env as it is, adversary of sender is bypassed
func (n *Network) Inject(env Envelope) {
	n.queue = append(n.queue, env)
}

func (n *Network) send(env Envelope) {
	if n.crashed[env.From.ID()] {
		return
	}
	adversary, ok := n.byzantine[env.From.ID()]
	if !ok {
		n.queue = append(n.queue, env)
		return
	}
	n.queue = append(n.queue, adversary.Intercept(env)...)
}

func (n *Network) separated(env Envelope) bool {
	if n.partition == nil {
		return false
	}
	return n.partition[env.From.ID()] != n.partition[env.To.ID()]
}

// Step delivers one random message, it returns false when nothing is left
func (n *Network) Step() (bool, error) {
	for len(n.queue) > 0 {
		i := n.rand.Intn(len(n.queue))
		env := n.queue[i]
		n.queue[i] = n.queue[len(n.queue)-1]
		n.queue = n.queue[:len(n.queue)-1]

		if n.separated(env) {
			n.held = append(n.held, env)
			continue
		}
		if n.crashed[env.To.ID()] {
			continue
		}
		node, ok := n.nodes[env.To.ID()]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownNode, env.To.ID())
		}

		if n.DuplicateRate > 0 && n.rand.Float64() < n.DuplicateRate {
			n.queue = append(n.queue, env)
		}
		n.delivered++
		n.tracer.Log("from", env.From.ID(), "to", env.To.ID(), "epoch", strconv.FormatUint(env.Message.Epoch, 10), "type", typeOf(env.Message))

		step, err := node.HandleMessage(env.From, env.Message)
		if err != nil {
			return false, err
		}
		n.Dispatch(env.To, step)
		return true, nil
	}
	return false, nil
}

// Run delivers messages until done returns true or no message is left. It
// returns error when limit messages are delivered without done.
func (n *Network) Run(limit int, done func() bool) error {
	for i := 0; i < limit; i++ {
		if done != nil && done() {
			return nil
		}
		ok, err := n.Step()
		if err != nil {
			return err
		}
		if !ok {
			if done == nil || done() {
				return nil
			}
			return errors.New("network is idle before done")
		}
	}
	if done != nil && done() {
		return nil
	}
	return fmt.Errorf("limit of %d messages is reached", limit)
}

// Traces returns every delivered message in delivery order
func (n *Network) Traces() []string {
	return n.tracer.Traces()
}

// Trace logs every delivered message
func (n *Network) Trace() {
	n.tracer.Trace()
}

func typeOf(msg *pb.Message) string {
	switch pl := msg.Payload.(type) {
	case *pb.Message_Rbc:
		return "RBC_" + pl.Rbc.Type.String()
	case *pb.Message_Bba:
		return "BBA_" + pl.Bba.Type.String()
	case *pb.Message_Dec:
		return "DEC"
	default:
		return "UNKNOWN"
	}
}

func (n *Network) Faults() []ReportedFault {
	return n.faults
}

// FaultsOf returns faults blamed on member
func (n *Network) FaultsOf(member hbbft.Member) []ReportedFault {
	result := make([]ReportedFault, 0)
	for _, fault := range n.faults {
		if fault.Member.Address == member.Address {
			result = append(result, fault)
		}
	}
	return result
}

func (n *Network) Delivered() int {
	return n.delivered
}

func (n *Network) Pending() int {
	return len(n.queue)
}
