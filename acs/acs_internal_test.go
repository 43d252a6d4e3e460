package acs

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/bba"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/rbc"
	"github.com/DE-labtory/hbbft/test/mock"
)

type mockRBC struct {
	HandleInputFunc func(data []byte) (rbc.Step, error)
}

func (r *mockRBC) HandleInput(data []byte) (rbc.Step, error) {
	return r.HandleInputFunc(data)
}

func (r *mockRBC) HandleMessage(sender hbbft.Member, msg *pb.RBC) (rbc.Step, error) {
	return rbc.Step{}, nil
}

func (r *mockRBC) Terminated() bool {
	return false
}

type mockBBA struct {
	inputs          []hbbft.Binary
	HandleInputFunc func(val hbbft.Binary) (bba.Step, error)
}

func (b *mockBBA) HandleInput(val hbbft.Binary) (bba.Step, error) {
	b.inputs = append(b.inputs, val)
	if b.HandleInputFunc == nil {
		return bba.Step{}, nil
	}
	return b.HandleInputFunc(val)
}

func (b *mockBBA) HandleMessage(sender hbbft.Member, msg *pb.BBA) (bba.Step, error) {
	return bba.Step{}, nil
}

func (b *mockBBA) AcceptInput() bool {
	return len(b.inputs) == 0
}

func (b *mockBBA) Terminated() bool {
	return false
}

func setUpMembers(n int) []hbbft.Member {
	memberList := make([]hbbft.Member, 0)
	for idx := 0; idx < n; idx++ {
		memberList = append(memberList, *hbbft.NewMember("127.0.0.1", uint16(8000+idx)))
	}
	return memberList
}

func setupACS(t *testing.T, n, f int, owner hbbft.Member, memberList []hbbft.Member) (*ACS, map[hbbft.Member]*mockBBA) {
	acs := &ACS{
		n:               n,
		f:               f,
		owner:           owner,
		memberMap:       hbbft.NewMemberMap(memberList...),
		rbcRepo:         NewRBCRepository(),
		bbaRepo:         NewBBARepository(),
		broadcastResult: newBroadcastDataMap(),
		agreementResult: newBinaryStateMap(),
		dec:             hbbft.NewBinaryState(),
	}

	bbaMap := make(map[hbbft.Member]*mockBBA)
	for _, member := range memberList {
		b := &mockBBA{}
		acs.rbcRepo.Save(member, &mockRBC{})
		acs.bbaRepo.Save(member, b)
		acs.agreementResult.set(member, hbbft.NewBinaryState())
		bbaMap[member] = b
	}
	return acs, bbaMap
}

func TestACS_sendZeroToIdleBba(t *testing.T) {
	n, f := 4, 1
	memberList := setUpMembers(n)
	acs, bbaMap := setupACS(t, n, f, memberList[0], memberList)

	// bba of member 0 already started with one
	if err := acs.tryAgreementStart(&Step{}, memberList[0]); err != nil {
		t.Fatalf("error in tryAgreementStart : %s", err.Error())
	}

	if err := acs.sendZeroToIdleBba(&Step{}); err != nil {
		t.Fatalf("error in sendZeroToIdleBba : %s", err.Error())
	}

	for i, member := range memberList {
		inputs := bbaMap[member].inputs
		expected := hbbft.Zero
		if i == 0 {
			expected = hbbft.One
		}
		if len(inputs) != 1 || inputs[0] != expected {
			t.Fatalf("member %d : expected input [%t], but got %v", i, expected, inputs)
		}
	}
}

func TestACS_processAgreement(t *testing.T) {
	n, f := 4, 1
	memberList := setUpMembers(n)
	acs, _ := setupACS(t, n, f, memberList[0], memberList)

	results := []struct {
		bin      hbbft.Binary
		expected bool
	}{
		{bin: hbbft.One, expected: false},
		{bin: hbbft.Zero, expected: false},
		{bin: hbbft.One, expected: false},
		{bin: hbbft.One, expected: true},
	}
	for i, result := range results {
		if done := acs.processAgreement(memberList[i], result.bin); done != result.expected {
			t.Fatalf("member %d : expected %t, but got %t", i, result.expected, done)
		}
	}

	// second decision of the same bba is ignored
	if done := acs.processAgreement(memberList[1], hbbft.One); done {
		t.Fatalf("expected false for duplicated agreement, but got true")
	}
}

func TestACS_tryCompleteAgreement(t *testing.T) {
	n, f := 4, 1
	memberList := setUpMembers(n)
	acs, _ := setupACS(t, n, f, memberList[0], memberList)

	for i, member := range memberList {
		if i == 2 {
			acs.agreementResult.item(member).Set(hbbft.Zero)
			continue
		}
		acs.agreementResult.item(member).Set(hbbft.One)
	}
	acs.processData(memberList[0], []byte("a"))
	acs.processData(memberList[1], []byte{})

	// value of member 3 is not delivered yet
	step := &Step{}
	acs.tryCompleteAgreement(step)
	if step.Output != nil || acs.Done() {
		t.Fatalf("expected no output, but got %v", step.Output)
	}

	acs.processData(memberList[3], []byte("d"))
	acs.tryCompleteAgreement(step)
	if step.Output == nil {
		t.Fatalf("expected output, but got nil")
	}

	entries := step.Output.Entries
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, but got %d", len(entries))
	}
	for i, idx := range []int{0, 1, 3} {
		if entries[i].Proposer != memberList[idx] {
			t.Fatalf("expected proposer %s, but got %s", memberList[idx].ID(), entries[i].Proposer.ID())
		}
	}

	// output only once
	step = &Step{}
	acs.tryCompleteAgreement(step)
	if step.Output != nil {
		t.Fatalf("expected no second output, but got %v", step.Output)
	}
}

type envelope struct {
	from int
	to   int
	msg  *pb.Message
}

func route(from int, members []hbbft.Member, step hbbft.Step) []envelope {
	result := make([]envelope, 0)
	for _, m := range step.Messages {
		for to := range members {
			if to == from {
				continue
			}
			if m.Broadcast() || members[to].Address == m.Target.Address {
				result = append(result, envelope{from: from, to: to, msg: m.Message})
			}
		}
	}
	return result
}

func runACS(t *testing.T, seed int64, n, f int, silent map[int]bool) map[int]*Result {
	members := setUpMembers(n)
	memberMap := hbbft.NewMemberMap(members...)

	acsList := make([]*ACS, 0, n)
	for i := 0; i < n; i++ {
		acs, err := New(n, f, 3, members[i], memberMap, &mock.Signer{Idx: i, T: f + 1})
		if err != nil {
			t.Fatalf("error in New : %s", err.Error())
		}
		acsList = append(acsList, acs)
	}

	outputs := make(map[int]*Result)
	queue := make([]envelope, 0)
	for i, acs := range acsList {
		if silent[i] {
			continue
		}
		step, err := acs.HandleInput([]byte{byte(i), 'v'})
		if err != nil {
			t.Fatalf("error in HandleInput : %s", err.Error())
		}
		queue = append(queue, route(i, members, step.Step)...)
	}

	r := rand.New(rand.NewSource(seed))
	for len(queue) > 0 {
		i := r.Intn(len(queue))
		e := queue[i]
		queue = append(queue[:i], queue[i+1:]...)

		if silent[e.to] {
			continue
		}
		step, err := acsList[e.to].HandleMessage(members[e.from], e.msg)
		if err != nil {
			t.Fatalf("error in HandleMessage : %s", err.Error())
		}
		if len(step.Faults) != 0 {
			t.Fatalf("expected no fault, but got %v", step.Faults)
		}
		if step.Output != nil {
			if _, ok := outputs[e.to]; ok {
				t.Fatalf("node %d output twice", e.to)
			}
			outputs[e.to] = step.Output
		}
		queue = append(queue, route(e.to, members, step.Step)...)
	}
	return outputs
}

func TestACS_CommonSubset(t *testing.T) {
	tests := []struct {
		n, f   int
		silent map[int]bool
	}{
		{n: 4, f: 1, silent: map[int]bool{}},
		{n: 4, f: 1, silent: map[int]bool{2: true}},
		{n: 7, f: 2, silent: map[int]bool{0: true, 6: true}},
	}

	for _, test := range tests {
		for seed := int64(0); seed < 5; seed++ {
			outputs := runACS(t, seed, test.n, test.f, test.silent)

			if len(outputs) != test.n-len(test.silent) {
				t.Fatalf("expected %d outputs, but got %d", test.n-len(test.silent), len(outputs))
			}

			var expected *Result
			for i, output := range outputs {
				if len(output.Entries) < test.n-test.f {
					t.Fatalf("node %d : expected subset size >= %d, but got %d", i, test.n-test.f, len(output.Entries))
				}
				if output.Epoch != 3 {
					t.Fatalf("expected epoch 3, but got %d", output.Epoch)
				}
				if expected == nil {
					expected = output
					continue
				}
				if len(output.Entries) != len(expected.Entries) {
					t.Fatalf("expected same subset, but got %v and %v", expected.Entries, output.Entries)
				}
				for j := range output.Entries {
					if output.Entries[j].Proposer != expected.Entries[j].Proposer ||
						!bytes.Equal(output.Entries[j].Value, expected.Entries[j].Value) {
						t.Fatalf("expected same subset, but got %v and %v", expected.Entries, output.Entries)
					}
				}
			}
		}
	}
}

func TestACS_HandleMessage_UnknownProposer(t *testing.T) {
	members := setUpMembers(4)
	acs, err := New(4, 1, 0, members[0], hbbft.NewMemberMap(members...), &mock.Signer{Idx: 0, T: 2})
	if err != nil {
		t.Fatalf("error in New : %s", err.Error())
	}

	msg := &pb.Message{
		Sender:  members[1].ID(),
		Payload: &pb.Message_Bba{Bba: &pb.BBA{Proposer: "10.0.0.1:1"}},
	}
	step, err := acs.HandleMessage(members[1], msg)
	if err != nil {
		t.Fatalf("error in HandleMessage : %s", err.Error())
	}
	if len(step.Faults) != 1 || step.Faults[0].Kind != hbbft.MalformedMessage {
		t.Fatalf("expected MalformedMessage fault, but got %v", step.Faults)
	}

	step, err = acs.HandleMessage(members[1], &pb.Message{Sender: members[1].ID()})
	if err != nil {
		t.Fatalf("error in HandleMessage : %s", err.Error())
	}
	if len(step.Faults) != 1 || step.Faults[0].Kind != hbbft.MalformedMessage {
		t.Fatalf("expected MalformedMessage fault, but got %v", step.Faults)
	}
}
