package hbbft_test

import (
	"testing"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
)

func TestStep_Extend(t *testing.T) {
	member := *hbbft.NewMember("127.0.0.1", 8000)

	step := hbbft.Step{}
	if !step.Empty() {
		t.Fatalf("expected empty step")
	}

	step.Broadcast(&pb.Message{Sender: "a"})

	other := hbbft.Step{}
	other.SendTo(member, &pb.Message{Sender: "b"})
	other.AddFault(member, hbbft.MalformedMessage, "bad payload")

	step.Extend(other)

	if len(step.Messages) != 2 {
		t.Fatalf("expected messages length is %d, but got %d", 2, len(step.Messages))
	}
	if !step.Messages[0].Broadcast() || step.Messages[0].Message.Sender != "a" {
		t.Fatalf("expected first message is broadcast from a")
	}
	if step.Messages[1].Broadcast() || step.Messages[1].Target.ID() != member.ID() {
		t.Fatalf("expected second message is targeted to %s", member.ID())
	}
	if len(step.Faults) != 1 || step.Faults[0].Kind != hbbft.MalformedMessage {
		t.Fatalf("expected one MalformedMessage fault, but got %v", step.Faults)
	}
	if step.Faults[0].Kind.String() != "MalformedMessage" {
		t.Fatalf("expected fault name is %s, but got %s", "MalformedMessage", step.Faults[0].Kind.String())
	}
}
