package hbbft

import (
	"fmt"

	"github.com/DE-labtory/hbbft/pb"
)

// TargetedMessage is a message which instance wants to send. When Target is
// nil the message goes to every member except the owner.
type TargetedMessage struct {
	Target  *Member
	Message *pb.Message
}

func (m TargetedMessage) Broadcast() bool {
	return m.Target == nil
}

type FaultKind int

const (
	InvalidSignatureShare FaultKind = iota
	InvalidDecryptionShare
	InconsistentRBCShard
	UnknownSender
	MalformedMessage
	UnexpectedMessage
	InvalidCiphertext
)

var faultKindName = map[FaultKind]string{
	InvalidSignatureShare:  "InvalidSignatureShare",
	InvalidDecryptionShare: "InvalidDecryptionShare",
	InconsistentRBCShard:   "InconsistentRBCShard",
	UnknownSender:          "UnknownSender",
	MalformedMessage:       "MalformedMessage",
	UnexpectedMessage:      "UnexpectedMessage",
	InvalidCiphertext:      "InvalidCiphertext",
}

func (k FaultKind) String() string {
	name, ok := faultKindName[k]
	if !ok {
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
	return name
}

// Fault is an evidence of misbehaviour of other member. It never aborts
// the protocol, offending message is just dropped.
type Fault struct {
	Member Member
	Kind   FaultKind
	Reason string
}

func (f Fault) String() string {
	return fmt.Sprintf("%s by %s: %s", f.Kind, f.Member.ID(), f.Reason)
}

// Step is the result of handling an input or a message. Every protocol
// instance returns messages in the order they should be sent.
type Step struct {
	Messages []TargetedMessage
	Faults   []Fault
}

func (s *Step) Broadcast(msg *pb.Message) {
	s.Messages = append(s.Messages, TargetedMessage{Message: msg})
}

func (s *Step) SendTo(member Member, msg *pb.Message) {
	target := member
	s.Messages = append(s.Messages, TargetedMessage{Target: &target, Message: msg})
}

func (s *Step) AddFault(member Member, kind FaultKind, reason string) {
	s.Faults = append(s.Faults, Fault{Member: member, Kind: kind, Reason: reason})
}

// Extend appends messages and faults of other after the ones already in s
func (s *Step) Extend(other Step) {
	s.Messages = append(s.Messages, other.Messages...)
	s.Faults = append(s.Faults, other.Faults...)
}

func (s Step) Empty() bool {
	return len(s.Messages) == 0 && len(s.Faults) == 0
}
