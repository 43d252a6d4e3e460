package rbc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/rbc/merkletree"
	"github.com/DE-labtory/iLogger"
	"github.com/klauspost/reedsolomon"
)

// size of the length prefix of value
const lengthSize = 4

// Output is the value delivered by RBC instance of proposer
type Output struct {
	Proposer hbbft.Member
	Value    []byte
}

type Step struct {
	hbbft.Step
	Output *Output
}

// RBC is reliable broadcast instance of one proposer in one epoch. Instance
// is driven by the caller, it must not be used concurrently.
type RBC struct {
	// number of network nodes
	n int

	// number of byzantine nodes which can tolerate
	f int

	epoch hbbft.Epoch

	// owner is the node running this instance
	owner      hbbft.Member
	ownerIndex int

	// proposer is the node whose value is broadcast
	proposer hbbft.Member

	memberMap *hbbft.MemberMap

	// Erasure coding using reed-solomon method
	enc reedsolomon.Encoder

	numDataShards int
	// totalShards is n+1 when f is 0, encoder needs at least one parity
	// shard. Shards after n are never sent.
	totalShards int

	inputDone bool
	// valRoot is root hash of VAL message from proposer
	valRoot merkletree.RootHash

	echoSent  bool
	readySent bool

	// Request of other rbcs
	echoReqRepo  hbbft.RequestRepository
	readyReqRepo hbbft.RequestRepository

	output     []byte
	terminated bool
}

func New(n, f int, epoch hbbft.Epoch, owner, proposer hbbft.Member, memberMap *hbbft.MemberMap) (*RBC, error) {
	if n <= 0 || n < 3*f+1 {
		return nil, errors.New(fmt.Sprintf("invalid network size n=%d, f=%d", n, f))
	}
	if memberMap.Len() != n {
		return nil, errors.New(fmt.Sprintf("member map has %d members, expected %d", memberMap.Len(), n))
	}

	ownerIndex := memberMap.Index(owner.Address)
	if ownerIndex < 0 {
		return nil, errors.New(fmt.Sprintf("owner %s is not a member", owner.ID()))
	}
	if memberMap.Index(proposer.Address) < 0 {
		return nil, errors.New(fmt.Sprintf("proposer %s is not a member", proposer.ID()))
	}

	numDataShards := n - 2*f
	numParityShards := 2 * f
	if numParityShards == 0 {
		numParityShards = 1
	}
	enc, err := reedsolomon.New(numDataShards, numParityShards)
	if err != nil {
		return nil, err
	}

	return &RBC{
		n:             n,
		f:             f,
		epoch:         epoch,
		owner:         owner,
		ownerIndex:    ownerIndex,
		proposer:      proposer,
		memberMap:     memberMap,
		enc:           enc,
		numDataShards: numDataShards,
		totalShards:   numDataShards + numParityShards,
		echoReqRepo:   NewEchoReqRepository(),
		readyReqRepo:  NewReadyReqRepository(),
	}, nil
}

func (rbc *RBC) Proposer() hbbft.Member {
	return rbc.proposer
}

// Output returns delivered value, value can be empty when proposer was faulty
func (rbc *RBC) Output() ([]byte, bool) {
	return rbc.output, rbc.terminated
}

func (rbc *RBC) Terminated() bool {
	return rbc.terminated
}

// HandleInput splits value into shards and sends every member its own
// shard with merkle path. Only proposer can input, and only once.
func (rbc *RBC) HandleInput(value []byte) (Step, error) {
	step := Step{}
	if rbc.owner.Address != rbc.proposer.Address {
		return step, ErrNotProposer
	}
	if rbc.inputDone {
		return step, ErrInputNotAccepted
	}
	rbc.inputDone = true

	shards, err := rbc.shard(value)
	if err != nil {
		return step, err
	}

	dataList, tree, err := rbc.tree(shards)
	if err != nil {
		return step, err
	}
	rootHash := tree.MerkleRoot()

	iLogger.Debugf(nil, "[RBC] proposer=%s epoch=%d value size=%d shards=%d",
		rbc.proposer.ID(), rbc.epoch, len(value), rbc.n)

	var own *ValRequest
	for i, member := range rbc.memberMap.Members() {
		rootPath, indexes, err := tree.MerklePath(dataList[i])
		if err != nil {
			return step, err
		}
		req := &ValRequest{
			RootHash: rootHash,
			Data:     shards[i],
			RootPath: rootPath,
			Indexes:  indexes,
		}

		if i == rbc.ownerIndex {
			own = req
			continue
		}
		msg, err := rbc.message(pb.RBC_VAL, req)
		if err != nil {
			return step, err
		}
		step.SendTo(member, msg)
	}

	if err := rbc.handleValRequest(&step, rbc.owner, own); err != nil {
		return step, err
	}
	return step, nil
}

// HandleMessage handles RBC message of sender. Misbehaviour of sender is
// reported as fault in step, error is returned only for local failures.
func (rbc *RBC) HandleMessage(sender hbbft.Member, msg *pb.RBC) (Step, error) {
	step := Step{}
	if rbc.memberMap.Index(sender.Address) < 0 {
		step.AddFault(sender, hbbft.UnknownSender, "rbc message from non member")
		return step, nil
	}
	if msg.Proposer != rbc.proposer.ID() {
		step.AddFault(sender, hbbft.UnexpectedMessage,
			fmt.Sprintf("rbc message of proposer %s routed to %s", msg.Proposer, rbc.proposer.ID()))
		return step, nil
	}

	var err error
	switch msg.Type {
	case pb.RBC_VAL:
		req := &ValRequest{}
		if !rbc.decode(&step, sender, msg.Payload, req) {
			return step, nil
		}
		err = rbc.handleValRequest(&step, sender, req)
	case pb.RBC_ECHO:
		req := &EchoRequest{}
		if !rbc.decode(&step, sender, msg.Payload, req) {
			return step, nil
		}
		err = rbc.handleEchoRequest(&step, sender, req)
	case pb.RBC_READY:
		req := &ReadyRequest{}
		if !rbc.decode(&step, sender, msg.Payload, req) {
			return step, nil
		}
		err = rbc.handleReadyRequest(&step, sender, req)
	default:
		step.AddFault(sender, hbbft.MalformedMessage, fmt.Sprintf("unknown rbc type %d", msg.Type))
	}
	return step, err
}

func (rbc *RBC) decode(step *Step, sender hbbft.Member, payload []byte, req interface{}) bool {
	if err := json.Unmarshal(payload, req); err != nil {
		step.AddFault(sender, hbbft.MalformedMessage, err.Error())
		return false
	}
	return true
}

func (rbc *RBC) handleValRequest(step *Step, sender hbbft.Member, req *ValRequest) error {
	if sender.Address != rbc.proposer.Address {
		step.AddFault(sender, hbbft.UnexpectedMessage, "val message from non proposer")
		return nil
	}
	if rbc.valRoot != nil {
		if !bytes.Equal(rbc.valRoot, req.RootHash) {
			step.AddFault(sender, hbbft.UnexpectedMessage, "second val message with different root")
		}
		return nil
	}
	if !merkletree.ValidatePath(merkletree.NewIndexedData(rbc.ownerIndex, req.Data), req.RootHash, req.RootPath, req.Indexes) {
		step.AddFault(sender, hbbft.InconsistentRBCShard, "invalid merkle path of val message")
		return nil
	}
	rbc.valRoot = req.RootHash

	if rbc.echoSent {
		return nil
	}
	rbc.echoSent = true

	echo := &EchoRequest{ValRequest: *req}
	msg, err := rbc.message(pb.RBC_ECHO, echo)
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return rbc.handleEchoRequest(step, rbc.owner, echo)
}

func (rbc *RBC) handleEchoRequest(step *Step, sender hbbft.Member, req *EchoRequest) error {
	if prev, err := rbc.echoReqRepo.Find(sender.Address); err == nil {
		if !bytes.Equal(prev.(*EchoRequest).RootHash, req.RootHash) {
			step.AddFault(sender, hbbft.UnexpectedMessage, "second echo message with different root")
		}
		return nil
	}

	senderIndex := rbc.memberMap.Index(sender.Address)
	if !merkletree.ValidatePath(merkletree.NewIndexedData(senderIndex, req.Data), req.RootHash, req.RootPath, req.Indexes) {
		step.AddFault(sender, hbbft.InconsistentRBCShard, "invalid merkle path of echo message")
		return nil
	}
	if err := rbc.echoReqRepo.Save(sender.Address, req); err != nil {
		return err
	}

	if !rbc.readySent && rbc.countEchos(req.RootHash) >= rbc.n-rbc.f {
		if err := rbc.sendReady(step, req.RootHash); err != nil {
			return err
		}
	}
	return rbc.tryOutput(step, req.RootHash)
}

func (rbc *RBC) handleReadyRequest(step *Step, sender hbbft.Member, req *ReadyRequest) error {
	if prev, err := rbc.readyReqRepo.Find(sender.Address); err == nil {
		if !bytes.Equal(prev.(*ReadyRequest).RootHash, req.RootHash) {
			step.AddFault(sender, hbbft.UnexpectedMessage, "second ready message with different root")
		}
		return nil
	}
	if err := rbc.readyReqRepo.Save(sender.Address, req); err != nil {
		return err
	}

	// amplification: f+1 ready guarantee at least one correct node sent it
	if !rbc.readySent && rbc.countReadys(req.RootHash) >= rbc.f+1 {
		if err := rbc.sendReady(step, req.RootHash); err != nil {
			return err
		}
	}
	return rbc.tryOutput(step, req.RootHash)
}

func (rbc *RBC) sendReady(step *Step, rootHash merkletree.RootHash) error {
	rbc.readySent = true

	ready := &ReadyRequest{RootHash: rootHash}
	msg, err := rbc.message(pb.RBC_READY, ready)
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return rbc.handleReadyRequest(step, rbc.owner, ready)
}

func (rbc *RBC) countEchos(rootHash merkletree.RootHash) int {
	cnt := 0
	for _, req := range rbc.echoReqRepo.FindAll() {
		if bytes.Equal(req.(*EchoRequest).RootHash, rootHash) {
			cnt++
		}
	}
	return cnt
}

func (rbc *RBC) countReadys(rootHash merkletree.RootHash) int {
	cnt := 0
	for _, req := range rbc.readyReqRepo.FindAll() {
		if bytes.Equal(req.(*ReadyRequest).RootHash, rootHash) {
			cnt++
		}
	}
	return cnt
}

func (rbc *RBC) tryOutput(step *Step, rootHash merkletree.RootHash) error {
	if rbc.terminated {
		return nil
	}
	if rbc.countReadys(rootHash) < 2*rbc.f+1 || rbc.countEchos(rootHash) < rbc.numDataShards {
		return nil
	}

	value, err := rbc.interpolate(rootHash)
	if err != nil {
		iLogger.Infof(nil, "[RBC] proposer=%s epoch=%d failed to decode value: %s",
			rbc.proposer.ID(), rbc.epoch, err.Error())
		step.AddFault(rbc.proposer, hbbft.InconsistentRBCShard, err.Error())
		value = []byte{}
	}

	rbc.output = value
	rbc.terminated = true
	step.Output = &Output{
		Proposer: rbc.proposer,
		Value:    value,
	}

	iLogger.Debugf(nil, "[RBC] proposer=%s epoch=%d delivered value size=%d", rbc.proposer.ID(), rbc.epoch, len(value))
	return nil
}

// interpolate reconstructs value from echo shards. Shards are re-encoded and
// checked against root hash, so every correct node decides the same value
// whatever subset of shards it used.
func (rbc *RBC) interpolate(rootHash merkletree.RootHash) ([]byte, error) {
	shards := make([][]byte, rbc.totalShards)
	for i, member := range rbc.memberMap.Members() {
		req, err := rbc.echoReqRepo.Find(member.Address)
		if err != nil {
			continue
		}
		echo := req.(*EchoRequest)
		if !bytes.Equal(echo.RootHash, rootHash) {
			continue
		}
		shards[i] = echo.Data
	}

	if err := rbc.enc.Reconstruct(shards); err != nil {
		return nil, err
	}

	encoded := make([][]byte, rbc.totalShards)
	for i := 0; i < rbc.numDataShards; i++ {
		encoded[i] = shards[i]
	}
	for i := rbc.numDataShards; i < rbc.totalShards; i++ {
		encoded[i] = make([]byte, len(shards[0]))
	}
	if err := rbc.enc.Encode(encoded); err != nil {
		return nil, err
	}

	_, tree, err := rbc.tree(encoded)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(tree.MerkleRoot(), rootHash) {
		return nil, ErrInconsistentShards
	}

	buf := bytes.Join(encoded[:rbc.numDataShards], nil)
	if len(buf) < lengthSize {
		return nil, ErrInvalidLength
	}
	size := binary.BigEndian.Uint32(buf[:lengthSize])
	if uint64(size) > uint64(len(buf)-lengthSize) {
		return nil, ErrInvalidLength
	}
	return buf[lengthSize : lengthSize+int(size)], nil
}

// tree builds merkle tree over the first n shards
func (rbc *RBC) tree(shards [][]byte) ([]merkletree.Data, *merkletree.Wrapper, error) {
	dataList := make([]merkletree.Data, 0, rbc.n)
	for i := 0; i < rbc.n; i++ {
		dataList = append(dataList, merkletree.NewIndexedData(i, shards[i]))
	}
	tree, err := merkletree.New(dataList)
	if err != nil {
		return nil, nil, err
	}
	return dataList, tree, nil
}

// shard prefixes value with its length and encodes it into n shards
func (rbc *RBC) shard(value []byte) ([][]byte, error) {
	data := make([]byte, lengthSize+len(value))
	binary.BigEndian.PutUint32(data[:lengthSize], uint32(len(value)))
	copy(data[lengthSize:], value)

	shards, err := rbc.enc.Split(data)
	if err != nil {
		return nil, err
	}
	if err := rbc.enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func (rbc *RBC) message(typ pb.RBC_Type, req hbbft.Request) (*pb.Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return &pb.Message{
		Sender: rbc.owner.ID(),
		Epoch:  uint64(rbc.epoch),
		Payload: &pb.Message_Rbc{
			Rbc: &pb.RBC{
				Proposer: rbc.proposer.ID(),
				Type:     typ,
				Payload:  payload,
			},
		},
	}, nil
}
