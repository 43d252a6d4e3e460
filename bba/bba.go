package bba

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/coin"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/tpke"
	"github.com/DE-labtory/iLogger"
)

// maxFutureRounds is how far ahead of the current round messages are kept,
// sender of a message beyond it is flagged
const maxFutureRounds = 64

type Step struct {
	hbbft.Step

	// Output is the decided value, set only once
	Output *hbbft.Binary
}

// BBA is binary byzantine agreement instance deciding whether value of
// proposer is included in the subset of epoch. Instance is driven by the
// caller, it must not be used concurrently.
type BBA struct {
	// number of network nodes
	n int

	// number of byzantine nodes
	f int

	epoch hbbft.Epoch

	owner    hbbft.Member
	proposer hbbft.Member

	memberMap *hbbft.MemberMap
	signer    tpke.ThresholdSigner

	hadInput   bool
	terminated bool

	// round is value for current epoch
	round uint64

	// est is estimated value of BBA instance, dec is decision value
	est, dec *hbbft.BinaryState

	// sentBvalSet is set of bval value instance has sent
	sentBvalSet *binarySet
	// binValueSet is set of values which 2f+1 members sent as bval
	binValueSet *binarySet

	auxSent  bool
	confSent bool

	bvalRepo map[hbbft.Binary]hbbft.RequestRepository
	auxRepo  hbbft.RequestRepository
	confRepo hbbft.RequestRepository
	// termRepo is kept across rounds
	termRepo hbbft.RequestRepository

	coin        *coin.Coin
	coinInvoked bool
	// confValues are the values confirmed by n-f members in current round
	confValues []hbbft.Binary

	incomingReqRepo hbbft.IncomingRequestRepository
}

func New(n, f int, epoch hbbft.Epoch, owner, proposer hbbft.Member, memberMap *hbbft.MemberMap, signer tpke.ThresholdSigner) (*BBA, error) {
	if n <= 0 || n < 3*f+1 {
		return nil, errors.New(fmt.Sprintf("invalid network size n=%d, f=%d", n, f))
	}
	if memberMap.Index(proposer.Address) < 0 {
		return nil, errors.New(fmt.Sprintf("proposer %s is not a member", proposer.ID()))
	}

	b := &BBA{
		n:               n,
		f:               f,
		epoch:           epoch,
		owner:           owner,
		proposer:        proposer,
		memberMap:       memberMap,
		signer:          signer,
		est:             hbbft.NewBinaryState(),
		dec:             hbbft.NewBinaryState(),
		termRepo:        newTermReqRepository(),
		incomingReqRepo: newDefaultIncomingRequestRepository(),
	}
	if err := b.resetRound(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BBA) resetRound() error {
	c, err := coin.New(b.n, b.f, b.owner, b.nonce(), b.signer, b.memberMap)
	if err != nil {
		return err
	}

	b.sentBvalSet = newBinarySet()
	b.binValueSet = newBinarySet()
	b.auxSent = false
	b.confSent = false
	b.bvalRepo = map[hbbft.Binary]hbbft.RequestRepository{
		hbbft.Zero: newBvalReqRepository(),
		hbbft.One:  newBvalReqRepository(),
	}
	b.auxRepo = newAuxReqRepository()
	b.confRepo = newConfReqRepository()
	b.coin = c
	b.coinInvoked = false
	b.confValues = nil
	return nil
}

// nonce of coin is unique for each epoch, proposer and round
func (b *BBA) nonce() []byte {
	return []byte(fmt.Sprintf("%d:%s:%d", b.epoch, b.proposer.ID(), b.round))
}

func (b *BBA) Proposer() hbbft.Member {
	return b.proposer
}

func (b *BBA) Round() uint64 {
	return b.round
}

func (b *BBA) Terminated() bool {
	return b.terminated
}

// Result returns decided value, the second result is false until decided
func (b *BBA) Result() (hbbft.Binary, bool) {
	if b.dec.Undefined() {
		return hbbft.Zero, false
	}
	return b.dec.Value(), true
}

// AcceptInput reports whether instance still can take initial value
func (b *BBA) AcceptInput() bool {
	return !b.hadInput && b.round == 0 && !b.terminated
}

// HandleInput will set the given val as the initial value to be proposed in the
// Agreement
func (b *BBA) HandleInput(val hbbft.Binary) (Step, error) {
	step := Step{}
	if !b.AcceptInput() {
		return step, ErrInputNotAccepted
	}
	b.hadInput = true
	b.est.Set(val)

	if b.n == 1 {
		return step, b.decide(&step, val)
	}
	return step, b.sendBval(&step, val)
}

// HandleMessage will process the given bba message of sender.
func (b *BBA) HandleMessage(sender hbbft.Member, msg *pb.BBA) (Step, error) {
	step := Step{}
	if b.memberMap.Index(sender.Address) < 0 {
		step.AddFault(sender, hbbft.UnknownSender, "bba message from non member")
		return step, nil
	}
	if msg.Proposer != b.proposer.ID() {
		step.AddFault(sender, hbbft.UnexpectedMessage,
			fmt.Sprintf("bba message of proposer %s routed to %s", msg.Proposer, b.proposer.ID()))
		return step, nil
	}
	if b.terminated {
		return step, nil
	}

	req, err := decodeRequest(msg)
	if err != nil {
		step.AddFault(sender, hbbft.MalformedMessage, err.Error())
		return step, nil
	}

	if term, ok := req.(*TermRequest); ok {
		return step, b.handleTermRequest(&step, sender, term)
	}

	switch {
	case msg.Round < b.round:
		return step, nil
	case msg.Round > b.round+maxFutureRounds:
		step.AddFault(sender, hbbft.UnexpectedMessage,
			fmt.Sprintf("round %d is too far from current round %d", msg.Round, b.round))
		return step, nil
	case msg.Round > b.round:
		b.incomingReqRepo.Save(msg.Round, sender.Address, req)
		return step, nil
	}

	return step, b.muxRequest(&step, sender, req)
}

func decodeRequest(msg *pb.BBA) (hbbft.Request, error) {
	var req hbbft.Request
	switch msg.Type {
	case pb.BBA_BVAL:
		req = &BvalRequest{}
	case pb.BBA_AUX:
		req = &AuxRequest{}
	case pb.BBA_CONF:
		req = &ConfRequest{}
	case pb.BBA_COIN:
		req = &coin.CoinRequest{}
	case pb.BBA_TERM:
		req = &TermRequest{}
	default:
		return nil, errors.New(fmt.Sprintf("unknown bba type %d", msg.Type))
	}

	if err := json.Unmarshal(msg.Payload, req); err != nil {
		return nil, err
	}
	if conf, ok := req.(*ConfRequest); ok {
		if len(conf.Values) == 0 || len(conf.Values) > 2 {
			return nil, errors.New(fmt.Sprintf("invalid conf values %v", conf.Values))
		}
	}
	return req, nil
}

func (b *BBA) muxRequest(step *Step, sender hbbft.Member, req hbbft.Request) error {
	switch r := req.(type) {
	case *BvalRequest:
		return b.handleBvalRequest(step, sender, r)
	case *AuxRequest:
		return b.handleAuxRequest(step, sender, r)
	case *ConfRequest:
		return b.handleConfRequest(step, sender, r)
	case *coin.CoinRequest:
		return b.handleCoinRequest(step, sender, r)
	default:
		return ErrInvalidType
	}
}

// moved reports whether the round of instance changed since round
func (b *BBA) moved(round uint64) bool {
	return b.terminated || b.round != round
}

func (b *BBA) handleBvalRequest(step *Step, sender hbbft.Member, req *BvalRequest) error {
	repo := b.bvalRepo[req.Value]
	if _, err := repo.Find(sender.Address); err == nil {
		return nil
	}
	if err := repo.Save(sender.Address, req); err != nil {
		return err
	}

	round := b.round
	count := len(repo.FindAll())

	// f+1 bval guarantee at least one correct node sent it
	if count >= b.f+1 && !b.sentBvalSet.exist(req.Value) {
		if err := b.sendBval(step, req.Value); err != nil {
			return err
		}
		if b.moved(round) {
			return nil
		}
	}

	if count >= 2*b.f+1 && !b.binValueSet.exist(req.Value) {
		b.binValueSet.union(req.Value)
		iLogger.Debugf(nil, "[BBA] proposer=%s round=%d bin values=%v", b.proposer.ID(), b.round, b.binValueSet.toList())

		if !b.auxSent {
			return b.sendAux(step, req.Value)
		}
		// bin values changed, aux or conf step can be finished now
		return b.tryConf(step)
	}
	return nil
}

func (b *BBA) handleAuxRequest(step *Step, sender hbbft.Member, req *AuxRequest) error {
	if prev, err := b.auxRepo.Find(sender.Address); err == nil {
		// aux taken from term may differ from the one sender sent before it decided
		_, termErr := b.termRepo.Find(sender.Address)
		if prev.(*AuxRequest).Value != req.Value && termErr != nil {
			step.AddFault(sender, hbbft.UnexpectedMessage, "second aux message with different value")
		}
		return nil
	}
	if err := b.auxRepo.Save(sender.Address, req); err != nil {
		return err
	}
	return b.tryConf(step)
}

func (b *BBA) handleConfRequest(step *Step, sender hbbft.Member, req *ConfRequest) error {
	if _, err := b.confRepo.Find(sender.Address); err == nil {
		return nil
	}
	if err := b.confRepo.Save(sender.Address, req); err != nil {
		return err
	}
	return b.tryFinishConf(step)
}

func (b *BBA) handleCoinRequest(step *Step, sender hbbft.Member, req *coin.CoinRequest) error {
	coinStep, err := b.coin.HandleShare(sender, req.Share)
	if err != nil {
		return err
	}
	step.Extend(coinStep.Step)

	if coinStep.Output == nil {
		return nil
	}
	return b.onCoin(step, *coinStep.Output)
}

// handleTermRequest treats term of sender as its bval, aux and conf. f+1
// terms of the same value mean a correct node decided it.
func (b *BBA) handleTermRequest(step *Step, sender hbbft.Member, req *TermRequest) error {
	if prev, err := b.termRepo.Find(sender.Address); err == nil {
		if prev.(*TermRequest).Value != req.Value {
			step.AddFault(sender, hbbft.UnexpectedMessage, "second term message with different value")
		}
		return nil
	}
	if err := b.termRepo.Save(sender.Address, req); err != nil {
		return err
	}

	if b.countTerms(req.Value) >= b.f+1 {
		return b.decide(step, req.Value)
	}
	return b.applyTerm(step, sender, req.Value)
}

func (b *BBA) applyTerm(step *Step, sender hbbft.Member, value hbbft.Binary) error {
	round := b.round
	if err := b.handleBvalRequest(step, sender, &BvalRequest{Value: value}); err != nil || b.moved(round) {
		return err
	}
	// sender may have sent other aux in this round before it decided
	if _, err := b.auxRepo.Find(sender.Address); err != nil {
		if err := b.handleAuxRequest(step, sender, &AuxRequest{Value: value}); err != nil || b.moved(round) {
			return err
		}
	}
	return b.handleConfRequest(step, sender, &ConfRequest{Values: []hbbft.Binary{value}})
}

func (b *BBA) countTerms(value hbbft.Binary) int {
	cnt := 0
	for _, req := range b.termRepo.FindAll() {
		if req.(*TermRequest).Value == value {
			cnt++
		}
	}
	return cnt
}

// tryConf sends conf once n-f aux values are in bin values
func (b *BBA) tryConf(step *Step) error {
	if b.confSent {
		return b.tryFinishConf(step)
	}
	if b.binValueSet.len() == 0 {
		return nil
	}

	cnt := 0
	for _, req := range b.auxRepo.FindAll() {
		if b.binValueSet.exist(req.(*AuxRequest).Value) {
			cnt++
		}
	}
	if cnt < b.n-b.f {
		return nil
	}
	return b.sendConf(step)
}

// tryFinishConf invokes coin once n-f conf values are subset of bin values
func (b *BBA) tryFinishConf(step *Step) error {
	if !b.confSent || b.coinInvoked {
		return nil
	}

	cnt := 0
	vals := newBinarySet()
	for _, req := range b.confRepo.FindAll() {
		conf := req.(*ConfRequest)
		if !b.binValueSet.includes(conf.Values) {
			continue
		}
		cnt++
		for _, v := range conf.Values {
			vals.union(v)
		}
	}
	if cnt < b.n-b.f {
		return nil
	}

	b.coinInvoked = true
	b.confValues = vals.toList()
	return b.invokeCoin(step)
}

func (b *BBA) invokeCoin(step *Step) error {
	iLogger.Debugf(nil, "[BBA] proposer=%s round=%d invoke coin with %v", b.proposer.ID(), b.round, b.confValues)

	coinStep, err := b.coin.HandleInput()
	if err != nil {
		return err
	}
	step.Extend(coinStep.Step)

	msg, err := b.message(pb.BBA_COIN, &coin.CoinRequest{Share: coinStep.Share})
	if err != nil {
		return err
	}
	step.Broadcast(msg)

	if coinStep.Output == nil {
		return nil
	}
	return b.onCoin(step, *coinStep.Output)
}

func (b *BBA) onCoin(step *Step, c hbbft.Coin) error {
	value := hbbft.Binary(c)
	if len(b.confValues) == 1 {
		b.est.Set(b.confValues[0])
		if b.confValues[0] == value {
			return b.decide(step, value)
		}
	} else {
		b.est.Set(value)
	}
	return b.nextRound(step)
}

func (b *BBA) decide(step *Step, value hbbft.Binary) error {
	if b.terminated {
		return nil
	}
	b.dec.Set(value)
	b.terminated = true
	step.Output = &value

	iLogger.Debugf(nil, "[BBA] proposer=%s epoch=%d decided %t in round %d", b.proposer.ID(), b.epoch, value, b.round)

	msg, err := b.message(pb.BBA_TERM, &TermRequest{Value: value})
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return nil
}

func (b *BBA) nextRound(step *Step) error {
	b.round++
	if err := b.resetRound(); err != nil {
		return err
	}
	round := b.round

	if err := b.sendBval(step, b.est.Value()); err != nil || b.moved(round) {
		return err
	}

	for _, member := range b.memberMap.Members() {
		req, err := b.termRepo.Find(member.Address)
		if err != nil {
			continue
		}
		if err := b.applyTerm(step, member, req.(*TermRequest).Value); err != nil || b.moved(round) {
			return err
		}
	}

	reqList := b.incomingReqRepo.Find(round)
	b.incomingReqRepo.Delete(round)
	for _, ir := range reqList {
		sender, ok := b.memberMap.Member(ir.Addr)
		if !ok {
			continue
		}
		if err := b.muxRequest(step, sender, ir.Req); err != nil || b.moved(round) {
			return err
		}
	}
	return nil
}

func (b *BBA) sendBval(step *Step, value hbbft.Binary) error {
	b.sentBvalSet.union(value)

	msg, err := b.message(pb.BBA_BVAL, &BvalRequest{Value: value})
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return b.handleBvalRequest(step, b.owner, &BvalRequest{Value: value})
}

func (b *BBA) sendAux(step *Step, value hbbft.Binary) error {
	b.auxSent = true

	msg, err := b.message(pb.BBA_AUX, &AuxRequest{Value: value})
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return b.handleAuxRequest(step, b.owner, &AuxRequest{Value: value})
}

func (b *BBA) sendConf(step *Step) error {
	b.confSent = true
	values := b.binValueSet.toList()

	msg, err := b.message(pb.BBA_CONF, &ConfRequest{Values: values})
	if err != nil {
		return err
	}
	step.Broadcast(msg)
	return b.handleConfRequest(step, b.owner, &ConfRequest{Values: values})
}

func (b *BBA) message(typ pb.BBA_Type, req hbbft.Request) (*pb.Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return &pb.Message{
		Sender: b.owner.ID(),
		Epoch:  uint64(b.epoch),
		Payload: &pb.Message_Bba{
			Bba: &pb.BBA{
				Proposer: b.proposer.ID(),
				Round:    b.round,
				Type:     typ,
				Payload:  payload,
			},
		},
	}, nil
}
