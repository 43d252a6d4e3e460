package acs

import (
	"errors"
	"fmt"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/bba"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/rbc"
	"github.com/DE-labtory/hbbft/tpke"
	"github.com/DE-labtory/iLogger"
)

// Entry is broadcast value of proposer which is in agreed subset
type Entry struct {
	Proposer hbbft.Member
	Value    []byte
}

// Result is agreed subset of epoch, entries are ordered by proposer id
type Result struct {
	Epoch   hbbft.Epoch
	Entries []Entry
}

type Step struct {
	hbbft.Step
	Output *Result
}

// ACS runs one RBC and one BBA instance for every member. Children report
// only through their steps, ACS never reaches into their state. Instance is
// driven by the caller, it must not be used concurrently.
type ACS struct {
	// number of network nodes
	n int
	// number of byzantine nodes which can tolerate
	f int

	epoch hbbft.Epoch
	owner hbbft.Member

	memberMap *hbbft.MemberMap

	// rbcRepo has rbc instances
	rbcRepo *RBCRepository

	// bbaRepo has bba instances
	bbaRepo *BBARepository

	// broadcastResult collects RBC instances' result
	broadcastResult *broadcastDataMap
	// agreementResult collects BBA instances' result
	// each entry have three states: undefined, zero, one
	agreementResult *binaryStateMap

	dec *hbbft.BinaryState
}

func New(n, f int, epoch hbbft.Epoch, owner hbbft.Member, memberMap *hbbft.MemberMap, signer tpke.ThresholdSigner) (*ACS, error) {
	acs := &ACS{
		n:               n,
		f:               f,
		epoch:           epoch,
		owner:           owner,
		memberMap:       memberMap,
		rbcRepo:         NewRBCRepository(),
		bbaRepo:         NewBBARepository(),
		broadcastResult: newBroadcastDataMap(),
		agreementResult: newBinaryStateMap(),
		dec:             hbbft.NewBinaryState(),
	}

	for _, member := range memberMap.Members() {
		r, err := rbc.New(n, f, epoch, owner, member, memberMap)
		if err != nil {
			return nil, err
		}
		b, err := bba.New(n, f, epoch, owner, member, memberMap, signer)
		if err != nil {
			return nil, err
		}
		acs.rbcRepo.Save(member, r)
		acs.bbaRepo.Save(member, b)
		acs.agreementResult.set(member, hbbft.NewBinaryState())
	}

	return acs, nil
}

// HandleInput receive encrypted contribution from honeybadger
func (acs *ACS) HandleInput(data []byte) (Step, error) {
	rbc, err := acs.rbcRepo.Find(acs.owner)
	if err != nil {
		return Step{}, errors.New(fmt.Sprintf("no match rbc instance - address : %s", acs.owner.Address.String()))
	}

	rbcStep, err := rbc.HandleInput(data)
	if err != nil {
		return Step{}, err
	}

	step := Step{}
	return step, acs.processRbcStep(&step, acs.owner, rbcStep)
}

// HandleMessage routes RBC and BBA message to the instance of its proposer
func (acs *ACS) HandleMessage(sender hbbft.Member, msg *pb.Message) (Step, error) {
	step := Step{}

	switch pl := msg.Payload.(type) {
	case *pb.Message_Rbc:
		proposer, ok := acs.memberMap.MemberByID(pl.Rbc.Proposer)
		if !ok {
			step.AddFault(sender, hbbft.MalformedMessage, fmt.Sprintf("unknown proposer %s", pl.Rbc.Proposer))
			return step, nil
		}
		return step, acs.handleRbcMessage(&step, proposer, sender, pl.Rbc)
	case *pb.Message_Bba:
		proposer, ok := acs.memberMap.MemberByID(pl.Bba.Proposer)
		if !ok {
			step.AddFault(sender, hbbft.MalformedMessage, fmt.Sprintf("unknown proposer %s", pl.Bba.Proposer))
			return step, nil
		}
		return step, acs.handleBbaMessage(&step, proposer, sender, pl.Bba)
	default:
		step.AddFault(sender, hbbft.MalformedMessage, hbbft.ErrUndefinedRequestType.Error())
		return step, nil
	}
}

func (acs *ACS) handleRbcMessage(step *Step, proposer, sender hbbft.Member, msg *pb.RBC) error {
	rbc, err := acs.rbcRepo.Find(proposer)
	if err != nil {
		return errors.New(fmt.Sprintf("no match rbc instance - address : %s", proposer.Address.String()))
	}

	rbcStep, err := rbc.HandleMessage(sender, msg)
	if err != nil {
		return err
	}
	return acs.processRbcStep(step, proposer, rbcStep)
}

func (acs *ACS) handleBbaMessage(step *Step, proposer, sender hbbft.Member, msg *pb.BBA) error {
	bba, err := acs.bbaRepo.Find(proposer)
	if err != nil {
		return errors.New(fmt.Sprintf("no match bba instance - address : %s", proposer.Address.String()))
	}

	bbaStep, err := bba.HandleMessage(sender, msg)
	if err != nil {
		return err
	}
	return acs.processBbaStep(step, proposer, bbaStep)
}

func (acs *ACS) processRbcStep(step *Step, proposer hbbft.Member, rbcStep rbc.Step) error {
	step.Extend(rbcStep.Step)
	if rbcStep.Output == nil {
		return nil
	}

	acs.processData(proposer, rbcStep.Output.Value)
	if err := acs.tryAgreementStart(step, proposer); err != nil {
		return err
	}
	acs.tryCompleteAgreement(step)
	return nil
}

func (acs *ACS) processBbaStep(step *Step, proposer hbbft.Member, bbaStep bba.Step) error {
	step.Extend(bbaStep.Step)
	if bbaStep.Output == nil {
		return nil
	}

	if done := acs.processAgreement(proposer, *bbaStep.Output); done {
		if err := acs.sendZeroToIdleBba(step); err != nil {
			return err
		}
	}
	acs.tryCompleteAgreement(step)
	return nil
}

func (acs *ACS) processData(proposer hbbft.Member, data []byte) {
	if acs.broadcastResult.exist(proposer) {
		iLogger.Debugf(nil, "[ACS] already processed data - address : %s", proposer.Address.String())
		return
	}
	acs.broadcastResult.set(proposer, data)
}

// processAgreement saves decision of proposer's BBA, returns true when n-f
// BBAs decided one
func (acs *ACS) processAgreement(proposer hbbft.Member, bin hbbft.Binary) bool {
	if !acs.agreementResult.exist(proposer) {
		iLogger.Errorf(nil, "[ACS] no match agreementResult item - address : %s", proposer.Address.String())
		return false
	}

	state := acs.agreementResult.item(proposer)
	if !state.Undefined() {
		iLogger.Debugf(nil, "[ACS] already processed agreement - address : %s", proposer.Address.String())
		return false
	}
	state.Set(bin)

	_, one := acs.agreementResult.count()
	return one >= acs.agreementThreshold()
}

// tryAgreementStart inputs one to BBA of proposer whose value is delivered
func (acs *ACS) tryAgreementStart(step *Step, proposer hbbft.Member) error {
	b, err := acs.bbaRepo.Find(proposer)
	if err != nil {
		return errors.New(fmt.Sprintf("no match bba instance - address : %s", proposer.Address.String()))
	}
	if !b.AcceptInput() {
		return nil
	}

	bbaStep, err := b.HandleInput(hbbft.One)
	if err != nil {
		return err
	}
	return acs.processBbaStep(step, proposer, bbaStep)
}

// sendZeroToIdleBba send zero to bba instances which still do
// not receive input value
func (acs *ACS) sendZeroToIdleBba(step *Step) error {
	for _, member := range acs.memberMap.Members() {
		b, err := acs.bbaRepo.Find(member)
		if err != nil {
			return errors.New(fmt.Sprintf("no match bba instance - address : %s", member.Address.String()))
		}
		if !b.AcceptInput() {
			continue
		}

		bbaStep, err := b.HandleInput(hbbft.Zero)
		if err != nil {
			return err
		}
		if err := acs.processBbaStep(step, member, bbaStep); err != nil {
			return err
		}
	}
	return nil
}

// tryCompleteAgreement outputs subset once every BBA decided and every
// value decided one is delivered
func (acs *ACS) tryCompleteAgreement(step *Step) {
	if !acs.dec.Undefined() {
		return
	}
	if done, _ := acs.agreementResult.count(); done < acs.agreementDoneThreshold() {
		return
	}

	entries := make([]Entry, 0)
	for _, member := range acs.memberMap.Members() {
		if !acs.agreementResult.item(member).Value() {
			continue
		}
		if !acs.broadcastResult.exist(member) {
			return
		}
		entries = append(entries, Entry{
			Proposer: member,
			Value:    acs.broadcastResult.item(member),
		})
	}

	acs.dec.Set(true)
	step.Output = &Result{
		Epoch:   acs.epoch,
		Entries: entries,
	}
	iLogger.Debugf(nil, "[ACS done] epoch : %d, owner : %s, subset size : %d", acs.epoch, acs.owner.Address.String(), len(entries))
}

// Done reports whether subset is output
func (acs *ACS) Done() bool {
	return !acs.dec.Undefined()
}

// Terminated reports whether subset is output and every BBA terminated, no
// more message is needed by other members then
func (acs *ACS) Terminated() bool {
	if !acs.Done() {
		return false
	}
	for _, b := range acs.bbaRepo.FindAll() {
		if !b.Terminated() {
			return false
		}
	}
	return true
}

func (acs *ACS) agreementThreshold() int {
	return acs.n - acs.f
}

func (acs *ACS) agreementDoneThreshold() int {
	return acs.n
}
