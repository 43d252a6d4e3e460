package tpke

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/DE-labtory/tpke"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/share"
)

// KeySet is the output of trusted dealer, every node receives its own
// KeyShare from it.
type KeySet struct {
	scheme string
	n      int
	f      int

	signPriPoly *share.PriPoly
	signPubPoly *share.PubPoly

	elGamalPriPoly *share.PriPoly
	elGamalPubPoly *share.PubPoly

	bls12SecretKeySet *tpke.SecretKeySet
}

// KeyShare is the key material of one node
type KeyShare struct {
	Scheme  string      `json:"scheme"`
	Index   int         `json:"index"`
	N       int         `json:"n"`
	F       int         `json:"f"`
	Sign    PolyShare   `json:"sign"`
	ElGamal *PolyShare  `json:"elgamal,omitempty"`
	Bls12   *Bls12Share `json:"bls12,omitempty"`
}

// Setup generates key set of network with n nodes tolerating f faulty nodes
func Setup(scheme string, n, f int) (*KeySet, error) {
	if n <= 0 || f < 0 || n < 3*f+1 {
		return nil, fmt.Errorf("invalid network size n=%d, f=%d", n, f)
	}
	if scheme == "" {
		scheme = SchemeElGamal
	}

	blsSuite := bn256.NewSuite()
	signPriPoly := share.NewPriPoly(blsSuite.G2(), f+1, nil, blsSuite.RandomStream())

	keySet := &KeySet{
		scheme:      scheme,
		n:           n,
		f:           f,
		signPriPoly: signPriPoly,
		signPubPoly: signPriPoly.Commit(blsSuite.G2().Point().Base()),
	}

	switch scheme {
	case SchemeElGamal:
		suite := edwards25519.NewBlakeSHA256Ed25519()
		keySet.elGamalPriPoly = share.NewPriPoly(suite, f+1, nil, suite.RandomStream())
		keySet.elGamalPubPoly = keySet.elGamalPriPoly.Commit(suite.Point().Base())
	case SchemeBls12:
		// threshold of tpke is the degree of polynomial
		keySet.bls12SecretKeySet = tpke.RandomSecretKeySet(f)
	default:
		return nil, ErrUnknownScheme
	}

	return keySet, nil
}

func (k *KeySet) N() int {
	return k.n
}

// KeyShare returns the key share of node with index i
func (k *KeySet) KeyShare(i int) (*KeyShare, error) {
	if i < 0 || i >= k.n {
		return nil, fmt.Errorf("key share index %d out of range [0, %d)", i, k.n)
	}

	sign, err := newPolyShare(k.signPriPoly.Shares(k.n)[i], k.signPubPoly)
	if err != nil {
		return nil, err
	}

	keyShare := &KeyShare{
		Scheme: k.scheme,
		Index:  i,
		N:      k.n,
		F:      k.f,
		Sign:   sign,
	}

	switch k.scheme {
	case SchemeElGamal:
		elGamal, err := newPolyShare(k.elGamalPriPoly.Shares(k.n)[i], k.elGamalPubPoly)
		if err != nil {
			return nil, err
		}
		keyShare.ElGamal = &elGamal
	case SchemeBls12:
		keyShare.Bls12 = newBls12Share(k.bls12SecretKeySet, k.n, i)
	}

	return keyShare, nil
}

func (k *KeyShare) validate() error {
	if k == nil || k.N <= 0 || k.Index < 0 || k.Index >= k.N || k.N < 3*k.F+1 {
		return ErrInvalidKeyShare
	}
	switch k.Scheme {
	case SchemeElGamal, "":
		if k.ElGamal == nil {
			return ErrInvalidKeyShare
		}
	case SchemeBls12:
		if k.Bls12 == nil || len(k.Bls12.PublicKeyShares) != k.N {
			return ErrInvalidKeyShare
		}
	default:
		return ErrUnknownScheme
	}
	return nil
}

// WriteKeyShare writes key share as json file, only owner can read it
func WriteKeyShare(path string, keyShare *KeyShare) error {
	data, err := json.MarshalIndent(keyShare, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0600)
}

func ReadKeyShare(path string) (*KeyShare, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	keyShare := &KeyShare{}
	if err := json.Unmarshal(data, keyShare); err != nil {
		return nil, err
	}
	if err := keyShare.validate(); err != nil {
		return nil, err
	}
	return keyShare, nil
}
