package honeybadger

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/tpke"
	"github.com/DE-labtory/iLogger"
)

type Config struct {
	N int
	F int

	// MaxFutureEpochs is how many epochs after current one are run
	// concurrently, messages of later epochs are buffered
	MaxFutureEpochs int

	// RetainedEpochs is how many finalized epochs keep handling messages
	// so that slower members can finish them
	RetainedEpochs int
}

func (c Config) validate() error {
	if c.N <= 0 || c.F < 0 || c.N < 3*c.F+1 {
		return fmt.Errorf("%w: n=%d, f=%d", ErrInvalidConfig, c.N, c.F)
	}
	if c.MaxFutureEpochs < 0 || c.RetainedEpochs < 0 {
		return fmt.Errorf("%w: negative epoch window", ErrInvalidConfig)
	}
	return nil
}

type Step struct {
	hbbft.Step

	// Batches are output in increasing epoch order
	Batches []hbbft.Batch
}

type incomingMessage struct {
	sender hbbft.Member
	msg    *pb.Message
}

// State is what is needed to restart HoneyBadger without replaying history
type State struct {
	Epoch           hbbft.Epoch `json:"epoch"`
	MaxFutureEpochs int         `json:"maxFutureEpochs"`
	RetainedEpochs  int         `json:"retainedEpochs"`
}

func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalState(data []byte) (State, error) {
	state := State{}
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// HoneyBadger orders contributions into batches epoch by epoch. It is driven
// by the caller and must not be used concurrently.
type HoneyBadger struct {
	config Config

	owner      hbbft.Member
	memberMap  *hbbft.MemberMap
	encryption tpke.ThresholdEncryption

	acsFactory    ACSFactory
	acsRepository *acsRepository
	states        map[hbbft.Epoch]*epochState

	// incoming keeps messages of epochs beyond the window
	incoming map[hbbft.Epoch][]incomingMessage

	// epoch is the first epoch whose batch is not output yet
	epoch hbbft.Epoch
}

func New(
	config Config,
	owner hbbft.Member,
	memberMap *hbbft.MemberMap,
	encryption tpke.ThresholdEncryption,
	acsFactory ACSFactory,
) (*HoneyBadger, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if memberMap.Len() != config.N {
		return nil, fmt.Errorf("%w: %d members for network size %d", ErrInvalidConfig, memberMap.Len(), config.N)
	}
	if _, ok := memberMap.Member(owner.Address); !ok {
		return nil, fmt.Errorf("%w: owner %s is not a member", ErrInvalidConfig, owner.ID())
	}

	return &HoneyBadger{
		config:        config,
		owner:         owner,
		memberMap:     memberMap,
		encryption:    encryption,
		acsFactory:    acsFactory,
		acsRepository: newACSRepository(),
		states:        make(map[hbbft.Epoch]*epochState),
		incoming:      make(map[hbbft.Epoch][]incomingMessage),
		epoch:         0,
	}, nil
}

func (hb *HoneyBadger) Epoch() hbbft.Epoch {
	return hb.epoch
}

// OnConsensus reports whether own contribution of current epoch is proposed
// and its batch is not output yet
func (hb *HoneyBadger) OnConsensus() bool {
	state, ok := hb.states[hb.epoch]
	return ok && state.proposed
}

// EpochStarted reports whether any member already works on current epoch
func (hb *HoneyBadger) EpochStarted() bool {
	_, ok := hb.acsRepository.find(hb.epoch)
	return ok
}

// Propose encrypts data and proposes it in current epoch. Only one
// proposal is accepted per epoch.
func (hb *HoneyBadger) Propose(data []byte) (Step, error) {
	step := Step{}

	a, state, err := hb.getEpoch(hb.epoch)
	if err != nil {
		return step, err
	}
	if state.proposed {
		return step, ErrAlreadyProposed
	}

	ct, err := hb.encryption.Encrypt(data)
	if err != nil {
		return step, err
	}
	state.proposed = true

	acsStep, err := a.HandleInput(ct)
	if err != nil {
		return step, err
	}
	if err := hb.processAcsStep(&step, state, acsStep); err != nil {
		return step, err
	}
	return step, hb.tryOutputBatches(&step)
}

func (hb *HoneyBadger) HandleMessage(sender hbbft.Member, msg *pb.Message) (Step, error) {
	step := Step{}

	if _, ok := hb.memberMap.Member(sender.Address); !ok {
		step.AddFault(sender, hbbft.UnknownSender, hbbft.ErrUnknownSender.Error())
		return step, nil
	}
	if msg.Sender != sender.ID() {
		step.AddFault(sender, hbbft.MalformedMessage, fmt.Sprintf("%s: sender field %s does not match %s", hbbft.ErrMalformedMessage, msg.Sender, sender.ID()))
		return step, nil
	}

	epoch := hbbft.Epoch(msg.Epoch)
	switch {
	case epoch < hb.epoch:
		if _, ok := hb.acsRepository.find(epoch); !ok {
			iLogger.Debugf(nil, "[HB] drop message of discarded epoch %d from %s", epoch, sender.ID())
			return step, nil
		}
	case epoch > hb.windowEnd():
		hb.incoming[epoch] = append(hb.incoming[epoch], incomingMessage{sender: sender, msg: msg})
		return step, nil
	}

	if err := hb.handleEpochMessage(&step, epoch, sender, msg); err != nil {
		return step, err
	}
	return step, hb.tryOutputBatches(&step)
}

// SkipTo abandons every epoch before epoch, it is used when member fell
// behind and caught up with other way
func (hb *HoneyBadger) SkipTo(epoch hbbft.Epoch) (Step, error) {
	step := Step{}
	if epoch <= hb.epoch {
		return step, nil
	}

	iLogger.Infof(nil, "[HB] skip epoch %d to %d - owner : %s", hb.epoch, epoch, hb.owner.ID())
	hb.epoch = epoch
	for _, e := range hb.acsRepository.epochs() {
		if e < epoch {
			hb.deleteEpoch(e)
		}
	}
	for e := range hb.incoming {
		if e < epoch {
			delete(hb.incoming, e)
		}
	}

	if err := hb.replay(&step); err != nil {
		return step, err
	}
	return step, hb.tryOutputBatches(&step)
}

func (hb *HoneyBadger) State() State {
	return State{
		Epoch:           hb.epoch,
		MaxFutureEpochs: hb.config.MaxFutureEpochs,
		RetainedEpochs:  hb.config.RetainedEpochs,
	}
}

// Restore starts over from state, every epoch in progress is abandoned
func (hb *HoneyBadger) Restore(state State) (Step, error) {
	config := hb.config
	config.MaxFutureEpochs = state.MaxFutureEpochs
	config.RetainedEpochs = state.RetainedEpochs
	if err := config.validate(); err != nil {
		return Step{}, err
	}

	for _, e := range hb.acsRepository.epochs() {
		hb.deleteEpoch(e)
	}
	hb.config = config
	hb.epoch = 0
	return hb.SkipTo(state.Epoch)
}

func (hb *HoneyBadger) handleEpochMessage(step *Step, epoch hbbft.Epoch, sender hbbft.Member, msg *pb.Message) error {
	a, state, err := hb.getEpoch(epoch)
	if err != nil {
		return err
	}

	switch pl := msg.Payload.(type) {
	case *pb.Message_Rbc, *pb.Message_Bba:
		acsStep, err := a.HandleMessage(sender, msg)
		if err != nil {
			return err
		}
		if err := hb.processAcsStep(step, state, acsStep); err != nil {
			return err
		}
	case *pb.Message_Dec:
		hb.handleDecMessage(step, state, sender, pl.Dec)
	default:
		step.AddFault(sender, hbbft.MalformedMessage, hbbft.ErrUndefinedRequestType.Error())
	}
	return nil
}

func (hb *HoneyBadger) tryOutputBatches(step *Step) error {
	for {
		state, ok := hb.states[hb.epoch]
		if !ok || state.batch == nil {
			return nil
		}

		step.Batches = append(step.Batches, *state.batch)
		hb.epoch = hb.epoch.Next()
		hb.prune()

		if err := hb.replay(step); err != nil {
			return err
		}
	}
}

// replay handles buffered messages which came into the window
func (hb *HoneyBadger) replay(step *Step) error {
	epochs := make([]hbbft.Epoch, 0)
	for e := range hb.incoming {
		if e <= hb.windowEnd() {
			epochs = append(epochs, e)
		}
	}
	sort.Slice(epochs, func(i, j int) bool {
		return epochs[i] < epochs[j]
	})

	for _, e := range epochs {
		messages := hb.incoming[e]
		delete(hb.incoming, e)
		for _, m := range messages {
			if err := hb.handleEpochMessage(step, e, m.sender, m.msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (hb *HoneyBadger) prune() {
	for _, e := range hb.acsRepository.epochs() {
		if uint64(e)+uint64(hb.config.RetainedEpochs) < uint64(hb.epoch) {
			hb.deleteEpoch(e)
		}
	}
}

func (hb *HoneyBadger) deleteEpoch(epoch hbbft.Epoch) {
	hb.acsRepository.delete(epoch)
	delete(hb.states, epoch)
}

func (hb *HoneyBadger) windowEnd() hbbft.Epoch {
	return hb.epoch + hbbft.Epoch(hb.config.MaxFutureEpochs)
}

func (hb *HoneyBadger) getEpoch(epoch hbbft.Epoch) (ACS, *epochState, error) {
	a, ok := hb.acsRepository.find(epoch)
	if ok {
		return a, hb.states[epoch], nil
	}

	a, err := hb.acsFactory.Create(epoch)
	if err != nil {
		return nil, nil, err
	}
	if err := hb.acsRepository.save(epoch, a); err != nil {
		return nil, nil, err
	}
	state := newEpochState(epoch)
	hb.states[epoch] = state
	return a, state, nil
}
