package honeybadger

import (
	"encoding/json"
	"fmt"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/acs"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/iLogger"
)

// epochState follows one epoch after its subset is agreed. Ciphertexts of
// the subset are decrypted independently, the batch is ready when every
// one of them is either decrypted or excluded.
type epochState struct {
	epoch    hbbft.Epoch
	proposed bool

	subset *acs.Result

	// ciphertexts of proposers in subset which passed verification
	ciphertexts map[hbbft.Member][]byte
	// shares are verified decryption shares keyed by member index
	shares map[hbbft.Member]map[int][]byte
	// pending are shares received before subset is agreed
	pending  map[hbbft.Member]map[hbbft.Member][]byte
	plain    map[hbbft.Member][]byte
	excluded map[hbbft.Member]bool

	batch *hbbft.Batch
}

func newEpochState(epoch hbbft.Epoch) *epochState {
	return &epochState{
		epoch:       epoch,
		ciphertexts: make(map[hbbft.Member][]byte),
		shares:      make(map[hbbft.Member]map[int][]byte),
		pending:     make(map[hbbft.Member]map[hbbft.Member][]byte),
		plain:       make(map[hbbft.Member][]byte),
		excluded:    make(map[hbbft.Member]bool),
	}
}

func (s *epochState) inSubset(proposer hbbft.Member) bool {
	if s.subset == nil {
		return false
	}
	for _, entry := range s.subset.Entries {
		if entry.Proposer == proposer {
			return true
		}
	}
	return false
}

func (hb *HoneyBadger) processAcsStep(step *Step, state *epochState, acsStep acs.Step) error {
	step.Extend(acsStep.Step)
	if acsStep.Output == nil || state.subset != nil {
		return nil
	}

	state.subset = acsStep.Output
	iLogger.Debugf(nil, "[HB] subset agreed - epoch : %d, owner : %s, size : %d", state.epoch, hb.owner.ID(), len(state.subset.Entries))

	for _, entry := range state.subset.Entries {
		if err := hb.encryption.VerifyCiphertext(entry.Value); err != nil {
			state.excluded[entry.Proposer] = true
			step.AddFault(entry.Proposer, hbbft.InvalidCiphertext, err.Error())
			continue
		}
		state.ciphertexts[entry.Proposer] = entry.Value
		state.shares[entry.Proposer] = make(map[int][]byte)

		share, err := hb.encryption.DecShare(entry.Value)
		if err != nil {
			return err
		}
		state.shares[entry.Proposer][hb.encryption.Index()] = share
		if err := hb.sendDecShare(step, state.epoch, entry.Proposer, share); err != nil {
			return err
		}

		for sender, pending := range state.pending[entry.Proposer] {
			hb.storeDecShare(step, state, entry.Proposer, sender, pending)
		}
		delete(state.pending, entry.Proposer)

		hb.tryDecrypt(step, state, entry.Proposer)
	}

	// shares of proposers outside subset are never needed
	state.pending = make(map[hbbft.Member]map[hbbft.Member][]byte)
	hb.tryFinalize(state)
	return nil
}

func (hb *HoneyBadger) handleDecMessage(step *Step, state *epochState, sender hbbft.Member, msg *pb.DEC) {
	proposer, ok := hb.memberMap.MemberByID(msg.Proposer)
	if !ok {
		step.AddFault(sender, hbbft.MalformedMessage, fmt.Sprintf("unknown proposer %s", msg.Proposer))
		return
	}

	req := &DecShareRequest{}
	if err := json.Unmarshal(msg.Payload, req); err != nil {
		step.AddFault(sender, hbbft.MalformedMessage, err.Error())
		return
	}

	if state.subset == nil {
		if _, ok := state.pending[proposer]; !ok {
			state.pending[proposer] = make(map[hbbft.Member][]byte)
		}
		if _, ok := state.pending[proposer][sender]; ok {
			return
		}
		state.pending[proposer][sender] = req.Share
		return
	}

	if state.excluded[proposer] {
		return
	}
	if !state.inSubset(proposer) {
		step.AddFault(sender, hbbft.UnexpectedMessage, fmt.Sprintf("decryption share for %s which is not in subset", proposer.ID()))
		return
	}

	hb.storeDecShare(step, state, proposer, sender, req.Share)
	hb.tryDecrypt(step, state, proposer)
	hb.tryFinalize(state)
}

func (hb *HoneyBadger) storeDecShare(step *Step, state *epochState, proposer, sender hbbft.Member, share []byte) {
	if _, ok := state.plain[proposer]; ok {
		return
	}

	index := hb.memberMap.Index(sender.Address)
	shares := state.shares[proposer]
	if _, ok := shares[index]; ok {
		return
	}

	if err := hb.encryption.VerifyDecShare(index, state.ciphertexts[proposer], share); err != nil {
		step.AddFault(sender, hbbft.InvalidDecryptionShare, err.Error())
		return
	}
	shares[index] = share
}

func (hb *HoneyBadger) tryDecrypt(step *Step, state *epochState, proposer hbbft.Member) {
	if _, ok := state.plain[proposer]; ok {
		return
	}
	shares := state.shares[proposer]
	if len(shares) < hb.config.F+1 {
		return
	}

	plain, err := hb.encryption.Decrypt(state.ciphertexts[proposer], shares)
	if err != nil {
		// verified shares of the same ciphertext fail equally on every node
		state.excluded[proposer] = true
		step.AddFault(proposer, hbbft.InvalidCiphertext, err.Error())
		return
	}
	state.plain[proposer] = plain
}

// tryFinalize builds batch once every ciphertext in subset is resolved,
// entries follow the subset order which is ordered by proposer id
func (hb *HoneyBadger) tryFinalize(state *epochState) {
	if state.batch != nil || state.subset == nil {
		return
	}

	entries := make([]hbbft.BatchEntry, 0, len(state.subset.Entries))
	for _, entry := range state.subset.Entries {
		if state.excluded[entry.Proposer] {
			continue
		}
		plain, ok := state.plain[entry.Proposer]
		if !ok {
			return
		}
		entries = append(entries, hbbft.BatchEntry{
			Proposer: entry.Proposer,
			Data:     plain,
		})
	}

	state.batch = &hbbft.Batch{
		Epoch:   state.epoch,
		Entries: entries,
	}
	iLogger.Infof(nil, "[HB] batch finalized - epoch : %d, owner : %s, entries : %d", state.epoch, hb.owner.ID(), len(entries))
}

func (hb *HoneyBadger) sendDecShare(step *Step, epoch hbbft.Epoch, proposer hbbft.Member, share []byte) error {
	payload, err := json.Marshal(&DecShareRequest{Share: share})
	if err != nil {
		return err
	}

	step.Broadcast(&pb.Message{
		Sender: hb.owner.ID(),
		Epoch:  uint64(epoch),
		Payload: &pb.Message_Dec{
			Dec: &pb.DEC{
				Proposer: proposer.ID(),
				Payload:  payload,
			},
		},
	})
	return nil
}
