package tpke

import (
	"sort"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/sign/tbls"
)

// BLSSigner is threshold BLS signature on bn256, public keys live in G2
type BLSSigner struct {
	suite *bn256.Suite

	n int
	// t is the number of shares needed to combine signature
	t int

	private *share.PriShare
	public  *share.PubPoly
}

func NewBLSSigner(n, f, index int, key PolyShare) (*BLSSigner, error) {
	suite := bn256.NewSuite()

	private, public, err := key.decode(suite.G2(), index)
	if err != nil {
		return nil, err
	}

	return &BLSSigner{
		suite:   suite,
		n:       n,
		t:       f + 1,
		private: private,
		public:  public,
	}, nil
}

func (s *BLSSigner) Index() int {
	return s.private.I
}

func (s *BLSSigner) SignShare(msg []byte) ([]byte, error) {
	return tbls.Sign(s.suite, s.private, msg)
}

// VerifySignatureShare checks the share is signed by the member of index
func (s *BLSSigner) VerifySignatureShare(index int, msg []byte, sig []byte) error {
	if index < 0 || index >= s.n || len(sig) <= 2 {
		return ErrInvalidShare
	}
	return safe(func() error {
		i, err := tbls.SigShare(sig).Index()
		if err != nil {
			return ErrInvalidShare
		}
		if i != index {
			return ErrShareIndexMismatch
		}
		if err := tbls.Verify(s.suite, s.public, msg, sig); err != nil {
			return ErrInvalidShare
		}
		return nil
	})
}

func (s *BLSSigner) CombineSignatures(msg []byte, shares map[int][]byte) ([]byte, error) {
	if len(shares) < s.t {
		return nil, ErrNotEnoughShares
	}

	indexes := make([]int, 0, len(shares))
	for i := range shares {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	sigs := make([][]byte, 0, len(indexes))
	for _, i := range indexes {
		sigs = append(sigs, shares[i])
	}

	var sig []byte
	err := safe(func() error {
		var err error
		sig, err = tbls.Recover(s.suite, s.public, msg, sigs, s.t, s.n)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.VerifySignature(msg, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// VerifySignature verifies combined signature with the group public key
func (s *BLSSigner) VerifySignature(msg []byte, sig []byte) error {
	return safe(func() error {
		return bls.Verify(s.suite, s.public.Commit(), msg, sig)
	})
}

// PolyShare is a private share of a secret polynomial and the public
// commitments of that polynomial
type PolyShare struct {
	Private []byte   `json:"private"`
	Commits [][]byte `json:"commits"`
}

func newPolyShare(priShare *share.PriShare, public *share.PubPoly) (PolyShare, error) {
	private, err := priShare.V.MarshalBinary()
	if err != nil {
		return PolyShare{}, err
	}

	_, points := public.Info()
	commits := make([][]byte, 0, len(points))
	for _, point := range points {
		b, err := point.MarshalBinary()
		if err != nil {
			return PolyShare{}, err
		}
		commits = append(commits, b)
	}

	return PolyShare{
		Private: private,
		Commits: commits,
	}, nil
}

func (p PolyShare) decode(group kyber.Group, index int) (*share.PriShare, *share.PubPoly, error) {
	if len(p.Commits) == 0 {
		return nil, nil, ErrInvalidKeyShare
	}

	scalar := group.Scalar()
	if err := scalar.UnmarshalBinary(p.Private); err != nil {
		return nil, nil, err
	}

	commits := make([]kyber.Point, 0, len(p.Commits))
	for _, b := range p.Commits {
		point := group.Point()
		if err := point.UnmarshalBinary(b); err != nil {
			return nil, nil, err
		}
		commits = append(commits, point)
	}

	return &share.PriShare{I: index, V: scalar}, share.NewPubPoly(group, group.Point().Base(), commits), nil
}
