package honeybadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/honeybadger"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/rbc"
	"github.com/DE-labtory/hbbft/test/mock"
	"github.com/DE-labtory/hbbft/test/network"
	"github.com/DE-labtory/hbbft/tpke"
)

// node proposes next contribution whenever its previous epoch is output,
// until target epoch is reached
type node struct {
	idx     int
	member  hbbft.Member
	hb      *honeybadger.HoneyBadger
	target  hbbft.Epoch
	batches []hbbft.Batch
}

func (n *node) Member() hbbft.Member {
	return n.member
}

func (n *node) HandleMessage(sender hbbft.Member, msg *pb.Message) (hbbft.Step, error) {
	step, err := n.hb.HandleMessage(sender, msg)
	if err != nil {
		return step.Step, err
	}
	return n.process(step)
}

func (n *node) process(step honeybadger.Step) (hbbft.Step, error) {
	n.batches = append(n.batches, step.Batches...)
	result := step.Step

	if n.hb.Epoch() >= n.target || n.hb.OnConsensus() {
		return result, nil
	}
	next, err := n.hb.Propose(contribution(n.idx, n.hb.Epoch()))
	if err != nil {
		return result, err
	}
	more, err := n.process(next)
	result.Extend(more)
	return result, err
}

func contribution(i int, epoch hbbft.Epoch) []byte {
	return []byte(fmt.Sprintf("node%d-epoch%d", i, epoch))
}

type provider func(i int) *tpke.Provider

func mockProvider(f int) provider {
	return func(i int) *tpke.Provider {
		return &tpke.Provider{
			Signer:     &mock.Signer{Idx: i, T: f + 1},
			Encryption: &mock.Encryption{Idx: i, T: f + 1},
		}
	}
}

func tpkeProvider(t *testing.T, scheme string, n, f int) provider {
	keySet, err := tpke.Setup(scheme, n, f)
	if err != nil {
		t.Fatalf("error in Setup : %s", err.Error())
	}
	return func(i int) *tpke.Provider {
		keyShare, err := keySet.KeyShare(i)
		if err != nil {
			t.Fatalf("error in KeyShare : %s", err.Error())
		}
		p, err := tpke.New(keyShare)
		if err != nil {
			t.Fatalf("error in New : %s", err.Error())
		}
		return p
	}
}

func setUpNodes(t *testing.T, config honeybadger.Config, target hbbft.Epoch, p provider) []*node {
	members := make([]hbbft.Member, 0)
	for i := 0; i < config.N; i++ {
		members = append(members, *hbbft.NewMember("127.0.0.1", uint16(8000+i)))
	}
	memberMap := hbbft.NewMemberMap(members...)

	nodeList := make([]*node, 0)
	for i, member := range members {
		keys := p(i)
		factory := honeybadger.NewDefaultACSFactory(config.N, config.F, member, memberMap, keys.Signer)
		hb, err := honeybadger.New(config, member, memberMap, keys.Encryption, factory)
		if err != nil {
			t.Fatalf("error in New : %s", err.Error())
		}
		nodeList = append(nodeList, &node{
			idx:     i,
			member:  member,
			hb:      hb,
			target:  target,
			batches: make([]hbbft.Batch, 0),
		})
	}
	return nodeList
}

func networkOf(seed int64, nodeList []*node) *network.Network {
	nodes := make([]network.Node, 0)
	for _, n := range nodeList {
		nodes = append(nodes, n)
	}
	return network.New(seed, nodes...)
}

// start makes every correct node propose its first contribution
func start(t *testing.T, net *network.Network, nodeList []*node) {
	for _, n := range nodeList {
		if !net.Correct(n.member) {
			continue
		}
		step, err := n.process(honeybadger.Step{})
		if err != nil {
			t.Fatalf("error in Propose : %s", err.Error())
		}
		net.Dispatch(n.member, step)
	}
}

func done(net *network.Network, nodeList []*node) func() bool {
	return func() bool {
		for _, n := range nodeList {
			if net.Correct(n.member) && hbbft.Epoch(len(n.batches)) < n.target {
				return false
			}
		}
		return true
	}
}

// checkBatches checks every correct node outputs the same batches in epoch
// order, and data of correct proposers is their contribution
func checkBatches(t *testing.T, net *network.Network, nodeList []*node, f int) {
	var expected []hbbft.Batch
	for i, n := range nodeList {
		if !net.Correct(n.member) {
			continue
		}
		if hbbft.Epoch(len(n.batches)) != n.target {
			t.Fatalf("node %d : expected %d batches, but got %d", i, n.target, len(n.batches))
		}
		if expected == nil {
			expected = n.batches
		}

		for e, batch := range n.batches {
			if batch.Epoch != hbbft.Epoch(e) {
				t.Fatalf("node %d : expected epoch %d, but got %d", i, e, batch.Epoch)
			}
			if len(batch.Entries) < len(nodeList)-2*f {
				t.Fatalf("node %d epoch %d : expected at least %d entries, but got %d", i, e, len(nodeList)-2*f, len(batch.Entries))
			}
			if len(batch.Entries) != len(expected[e].Entries) {
				t.Fatalf("node %d epoch %d : expected %d entries, but got %d", i, e, len(expected[e].Entries), len(batch.Entries))
			}
			for j, entry := range batch.Entries {
				other := expected[e].Entries[j]
				if entry.Proposer != other.Proposer || !bytes.Equal(entry.Data, other.Data) {
					t.Fatalf("node %d epoch %d : expected entry %v, but got %v", i, e, other, entry)
				}
			}
		}
	}

	for e, batch := range expected {
		for _, entry := range batch.Entries {
			for i, n := range nodeList {
				if n.member == entry.Proposer && net.Correct(n.member) && !bytes.Equal(entry.Data, contribution(i, hbbft.Epoch(e))) {
					t.Fatalf("epoch %d : expected %s, but got %s", e, contribution(i, hbbft.Epoch(e)), entry.Data)
				}
			}
		}
	}
}

func run(t *testing.T, net *network.Network, nodeList []*node, name string) {
	if err := net.Run(10000000, done(net, nodeList)); err != nil {
		net.Trace()
		t.Fatalf("%s : %s", name, err.Error())
	}
}

func TestHoneyBadger_Simulation(t *testing.T) {
	tests := []struct {
		config  honeybadger.Config
		target  hbbft.Epoch
		crashed []int
	}{
		{config: honeybadger.Config{N: 1, F: 0}, target: 3},
		{config: honeybadger.Config{N: 4, F: 1, RetainedEpochs: 1}, target: 3},
		{config: honeybadger.Config{N: 4, F: 1, MaxFutureEpochs: 2, RetainedEpochs: 1}, target: 3, crashed: []int{0}},
		{config: honeybadger.Config{N: 7, F: 2, MaxFutureEpochs: 1, RetainedEpochs: 1}, target: 2, crashed: []int{2, 5}},
	}

	for _, test := range tests {
		for seed := int64(0); seed < 3; seed++ {
			name := fmt.Sprintf("n=%d crashed=%v seed=%d", test.config.N, test.crashed, seed)
			nodeList := setUpNodes(t, test.config, test.target, mockProvider(test.config.F))
			net := networkOf(seed, nodeList)
			for _, idx := range test.crashed {
				net.Crash(nodeList[idx].member)
			}

			start(t, net, nodeList)
			run(t, net, nodeList, name)
			checkBatches(t, net, nodeList, test.config.F)
			if len(net.Faults()) != 0 {
				t.Fatalf("%s : expected no fault, but got %v", name, net.Faults())
			}
		}
	}
}

func TestHoneyBadger_Simulation_Tpke(t *testing.T) {
	for _, scheme := range []string{tpke.SchemeElGamal, tpke.SchemeBls12} {
		config := honeybadger.Config{N: 4, F: 1, RetainedEpochs: 1}
		nodeList := setUpNodes(t, config, 2, tpkeProvider(t, scheme, config.N, config.F))
		net := networkOf(7, nodeList)
		net.Crash(nodeList[3].member)

		start(t, net, nodeList)
		run(t, net, nodeList, scheme)
		checkBatches(t, net, nodeList, config.F)
	}
}

func TestHoneyBadger_Duplicates(t *testing.T) {
	config := honeybadger.Config{N: 4, F: 1, MaxFutureEpochs: 1, RetainedEpochs: 1}
	for seed := int64(0); seed < 3; seed++ {
		nodeList := setUpNodes(t, config, 2, mockProvider(config.F))
		net := networkOf(seed, nodeList)
		net.DuplicateRate = 0.2

		start(t, net, nodeList)
		run(t, net, nodeList, fmt.Sprintf("seed=%d", seed))
		checkBatches(t, net, nodeList, config.F)
		if len(net.Faults()) != 0 {
			t.Fatalf("seed=%d : expected duplicates are not faults, but got %v", seed, net.Faults())
		}
	}
}

func TestHoneyBadger_Partition(t *testing.T) {
	config := honeybadger.Config{N: 7, F: 2, MaxFutureEpochs: 1, RetainedEpochs: 1}
	for seed := int64(0); seed < 3; seed++ {
		nodeList := setUpNodes(t, config, 2, mockProvider(config.F))
		net := networkOf(seed, nodeList)
		members := net.Members()
		net.Partition(members[:4], members[4:])

		start(t, net, nodeList)
		if err := net.Run(10000000, nil); err != nil {
			t.Fatalf("seed=%d : %s", seed, err.Error())
		}
		for i, n := range nodeList {
			if len(n.batches) != 0 {
				t.Fatalf("seed=%d node %d : expected no batch while partitioned, but got %d", seed, i, len(n.batches))
			}
		}

		net.Heal()
		run(t, net, nodeList, fmt.Sprintf("seed=%d", seed))
		checkBatches(t, net, nodeList, config.F)
	}
}

// byzantine member sends decryption shares nobody can verify
func TestHoneyBadger_ByzantineDecShare(t *testing.T) {
	config := honeybadger.Config{N: 4, F: 1, RetainedEpochs: 1}
	for seed := int64(0); seed < 3; seed++ {
		nodeList := setUpNodes(t, config, 2, mockProvider(config.F))
		net := networkOf(seed, nodeList)
		byzantine := nodeList[1]

		net.SetByzantine(byzantine.member, network.AdversaryFunc(func(env network.Envelope) []network.Envelope {
			dec := env.Message.GetDec()
			if dec == nil {
				return []network.Envelope{env}
			}
			payload, _ := json.Marshal(&honeybadger.DecShareRequest{Share: []byte("forged")})
			env.Message = &pb.Message{
				Sender: env.Message.Sender,
				Epoch:  env.Message.Epoch,
				Payload: &pb.Message_Dec{Dec: &pb.DEC{
					Proposer: dec.Proposer,
					Payload:  payload,
				}},
			}
			return []network.Envelope{env}
		}))

		step, err := byzantine.process(honeybadger.Step{})
		if err != nil {
			t.Fatalf("error in Propose : %s", err.Error())
		}
		net.Dispatch(byzantine.member, step)

		start(t, net, nodeList)
		run(t, net, nodeList, fmt.Sprintf("seed=%d", seed))
		checkBatches(t, net, nodeList, config.F)

		for _, fault := range net.Faults() {
			if fault.Member != byzantine.member || fault.Kind != hbbft.InvalidDecryptionShare {
				t.Fatalf("seed=%d : expected only %s of byzantine member, but got %s", seed, hbbft.InvalidDecryptionShare, fault.String())
			}
		}
		if len(net.FaultsOf(byzantine.member)) == 0 {
			t.Fatalf("seed=%d : expected faults of byzantine member, but got none", seed)
		}
	}
}

// byzantine member echoes corrupted shards in every rbc instance
func TestHoneyBadger_InconsistentShard(t *testing.T) {
	config := honeybadger.Config{N: 4, F: 1, RetainedEpochs: 1}
	for seed := int64(0); seed < 3; seed++ {
		nodeList := setUpNodes(t, config, 1, mockProvider(config.F))
		net := networkOf(seed, nodeList)
		byzantine := nodeList[3]

		net.SetByzantine(byzantine.member, network.AdversaryFunc(func(env network.Envelope) []network.Envelope {
			msg := env.Message.GetRbc()
			if msg == nil || msg.Type != pb.RBC_ECHO {
				return []network.Envelope{env}
			}
			echo := &rbc.EchoRequest{}
			if err := json.Unmarshal(msg.Payload, echo); err != nil {
				t.Fatalf("error in Unmarshal : %s", err.Error())
			}
			echo.Data = append([]byte("corrupted"), echo.Data...)
			payload, _ := json.Marshal(echo)
			env.Message = &pb.Message{
				Sender: env.Message.Sender,
				Epoch:  env.Message.Epoch,
				Payload: &pb.Message_Rbc{Rbc: &pb.RBC{
					Proposer: msg.Proposer,
					Type:     msg.Type,
					Payload:  payload,
				}},
			}
			return []network.Envelope{env}
		}))

		step, err := byzantine.process(honeybadger.Step{})
		if err != nil {
			t.Fatalf("error in Propose : %s", err.Error())
		}
		net.Dispatch(byzantine.member, step)

		start(t, net, nodeList)
		run(t, net, nodeList, fmt.Sprintf("seed=%d", seed))
		checkBatches(t, net, nodeList, config.F)

		faults := net.FaultsOf(byzantine.member)
		if len(faults) == 0 {
			t.Fatalf("seed=%d : expected faults of byzantine member, but got none", seed)
		}
		for _, fault := range net.Faults() {
			if fault.Member != byzantine.member || fault.Kind != hbbft.InconsistentRBCShard {
				t.Fatalf("seed=%d : expected only %s of byzantine member, but got %s", seed, hbbft.InconsistentRBCShard, fault.String())
			}
		}
	}
}

// member 3 sends inconsistent shards of its proposal to member 0 and 1, its
// value can not be delivered and is left out of the subset
func TestHoneyBadger_InconsistentProposerShard(t *testing.T) {
	config := honeybadger.Config{N: 4, F: 1, RetainedEpochs: 1}
	for seed := int64(0); seed < 5; seed++ {
		nodeList := setUpNodes(t, config, 1, mockProvider(config.F))
		net := networkOf(seed, nodeList)
		byzantine := nodeList[3]
		victims := []hbbft.Member{nodeList[0].member, nodeList[1].member}

		net.SetByzantine(byzantine.member, network.AdversaryFunc(func(env network.Envelope) []network.Envelope {
			msg := env.Message.GetRbc()
			if msg == nil || msg.Type != pb.RBC_VAL || (env.To != victims[0] && env.To != victims[1]) {
				return []network.Envelope{env}
			}
			val := &rbc.ValRequest{}
			if err := json.Unmarshal(msg.Payload, val); err != nil {
				t.Fatalf("error in Unmarshal : %s", err.Error())
			}
			val.Data = []byte{val.Data[0] ^ 0xff}
			payload, _ := json.Marshal(val)
			env.Message = &pb.Message{
				Sender: env.Message.Sender,
				Epoch:  env.Message.Epoch,
				Payload: &pb.Message_Rbc{Rbc: &pb.RBC{
					Proposer: msg.Proposer,
					Type:     msg.Type,
					Payload:  payload,
				}},
			}
			return []network.Envelope{env}
		}))

		step, err := byzantine.process(honeybadger.Step{})
		if err != nil {
			t.Fatalf("error in Propose : %s", err.Error())
		}
		net.Dispatch(byzantine.member, step)

		start(t, net, nodeList)
		run(t, net, nodeList, fmt.Sprintf("seed=%d", seed))
		checkBatches(t, net, nodeList, config.F)

		batch := nodeList[0].batches[0]
		if len(batch.Entries) != 3 {
			t.Fatalf("seed=%d : expected 3 entries, but got %d", seed, len(batch.Entries))
		}
		for _, entry := range batch.Entries {
			if entry.Proposer == byzantine.member {
				t.Fatalf("seed=%d : expected byzantine proposer left out", seed)
			}
		}
		for _, fault := range net.Faults() {
			if fault.Member != byzantine.member || fault.Kind != hbbft.InconsistentRBCShard {
				t.Fatalf("seed=%d : expected only %s of byzantine member, but got %s", seed, hbbft.InconsistentRBCShard, fault.String())
			}
		}
	}
}
