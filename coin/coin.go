package coin

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/tpke"
	"github.com/DE-labtory/iLogger"
)

var ErrInputNotAccepted = errors.New("coin is already flipped")

// CoinRequest carries the signature share of sender
type CoinRequest struct {
	Share []byte
}

func (r CoinRequest) Recv() {}

type Step struct {
	hbbft.Step

	// Share is own signature share, the caller sends it to other members
	Share []byte

	Output *hbbft.Coin
}

// Coin is a common coin for one nonce. Every correct member which flips
// the coin with the same nonce gets the same value, and the value can't be
// known before f+1 members flipped it.
type Coin struct {
	n int
	f int

	owner     hbbft.Member
	nonce     []byte
	signer    tpke.ThresholdSigner
	memberMap *hbbft.MemberMap

	hadInput bool
	// shares are valid signature shares keyed by member index
	shares map[int][]byte

	value      hbbft.Coin
	terminated bool
}

func New(n, f int, owner hbbft.Member, nonce []byte, signer tpke.ThresholdSigner, memberMap *hbbft.MemberMap) (*Coin, error) {
	if n <= 0 || n < 3*f+1 {
		return nil, errors.New(fmt.Sprintf("invalid network size n=%d, f=%d", n, f))
	}
	if signer == nil {
		return nil, errors.New("signer is nil")
	}
	if memberMap.Index(owner.Address) != signer.Index() {
		return nil, errors.New(fmt.Sprintf("owner %s index %d does not match signer index %d",
			owner.ID(), memberMap.Index(owner.Address), signer.Index()))
	}

	return &Coin{
		n:         n,
		f:         f,
		owner:     owner,
		nonce:     nonce,
		signer:    signer,
		memberMap: memberMap,
		shares:    make(map[int][]byte),
	}, nil
}

// HandleInput signs nonce with own key share. Coin outputs only after own
// share is made.
func (c *Coin) HandleInput() (Step, error) {
	step := Step{}
	if c.hadInput {
		return step, ErrInputNotAccepted
	}
	c.hadInput = true

	share, err := c.signer.SignShare(c.nonce)
	if err != nil {
		return step, err
	}
	c.shares[c.signer.Index()] = share
	step.Share = share

	return step, c.tryOutput(&step)
}

// HandleShare verifies and stores share of sender. Invalid share is
// reported as fault and dropped.
func (c *Coin) HandleShare(sender hbbft.Member, share []byte) (Step, error) {
	step := Step{}

	index := c.memberMap.Index(sender.Address)
	if index < 0 {
		step.AddFault(sender, hbbft.UnknownSender, "coin share from non member")
		return step, nil
	}
	if _, ok := c.shares[index]; ok {
		return step, nil
	}

	if err := c.signer.VerifySignatureShare(index, c.nonce, share); err != nil {
		iLogger.Debugf(nil, "[COIN] invalid share from %s: %s", sender.ID(), err.Error())
		step.AddFault(sender, hbbft.InvalidSignatureShare, err.Error())
		return step, nil
	}
	c.shares[index] = share

	return step, c.tryOutput(&step)
}

func (c *Coin) tryOutput(step *Step) error {
	if c.terminated || !c.hadInput || len(c.shares) < c.f+1 {
		return nil
	}

	sig, err := c.signer.CombineSignatures(c.nonce, c.shares)
	if err != nil {
		return err
	}

	c.value = Parity(sig)
	c.terminated = true
	value := c.value
	step.Output = &value

	iLogger.Debugf(nil, "[COIN] nonce=%s value=%t", c.nonce, value)
	return nil
}

// Value returns coin value, the second result is false until the coin is
// decided
func (c *Coin) Value() (hbbft.Coin, bool) {
	return c.value, c.terminated
}

func (c *Coin) Terminated() bool {
	return c.terminated
}

// Parity derives coin value from combined signature
func Parity(sig []byte) hbbft.Coin {
	h := sha256.Sum256(sig)
	return h[0]&1 == 1
}
