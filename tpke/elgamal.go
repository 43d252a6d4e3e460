package tpke

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"sort"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/proof/dleq"
	"go.dedis.ch/kyber/v3/share"
)

// ElGamal is hashed threshold ElGamal on edwards25519. Payload is sealed
// with AES-GCM under the hash of shared point, decryption shares carry a
// DLEQ proof against the public share of the member.
type ElGamal struct {
	suite *edwards25519.SuiteEd25519

	n int
	t int

	private *share.PriShare
	public  *share.PubPoly
}

type elGamalCiphertext struct {
	U       []byte `json:"u"`
	Nonce   []byte `json:"nonce"`
	Payload []byte `json:"payload"`
}

type elGamalDecShare struct {
	Index int    `json:"index"`
	Ui    []byte `json:"ui"`
	C     []byte `json:"c"`
	R     []byte `json:"r"`
	VG    []byte `json:"vg"`
	VH    []byte `json:"vh"`
}

func NewElGamal(n, f, index int, key PolyShare) (*ElGamal, error) {
	suite := edwards25519.NewBlakeSHA256Ed25519()

	private, public, err := key.decode(suite, index)
	if err != nil {
		return nil, err
	}

	return &ElGamal{
		suite:   suite,
		n:       n,
		t:       f + 1,
		private: private,
		public:  public,
	}, nil
}

func (e *ElGamal) Index() int {
	return e.private.I
}

func (e *ElGamal) Encrypt(msg []byte) ([]byte, error) {
	r := e.suite.Scalar().Pick(e.suite.RandomStream())
	u := e.suite.Point().Mul(r, nil)
	shared := e.suite.Point().Mul(r, e.public.Commit())

	uBytes, err := u.MarshalBinary()
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(shared)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	e.suite.RandomStream().XORKeyStream(nonce, nonce)

	return json.Marshal(elGamalCiphertext{
		U:       uBytes,
		Nonce:   nonce,
		Payload: gcm.Seal(nil, nonce, msg, uBytes),
	})
}

func (e *ElGamal) VerifyCiphertext(ct []byte) error {
	_, _, err := e.decodeCiphertext(ct)
	return err
}

func (e *ElGamal) DecShare(ct []byte) ([]byte, error) {
	_, u, err := e.decodeCiphertext(ct)
	if err != nil {
		return nil, err
	}

	proof, _, ui, err := dleq.NewDLEQProof(e.suite, e.suite.Point().Base(), u, e.private.V)
	if err != nil {
		return nil, err
	}

	decShare := elGamalDecShare{Index: e.private.I}
	for _, field := range []struct {
		dst *[]byte
		src interface{ MarshalBinary() ([]byte, error) }
	}{
		{&decShare.Ui, ui},
		{&decShare.C, proof.C},
		{&decShare.R, proof.R},
		{&decShare.VG, proof.VG},
		{&decShare.VH, proof.VH},
	} {
		b, err := field.src.MarshalBinary()
		if err != nil {
			return nil, err
		}
		*field.dst = b
	}

	return json.Marshal(decShare)
}

// VerifyDecShare checks the share is the secret share of member index
// applied on U of the ciphertext
func (e *ElGamal) VerifyDecShare(index int, ct []byte, s []byte) error {
	if index < 0 || index >= e.n {
		return ErrInvalidShare
	}

	_, u, err := e.decodeCiphertext(ct)
	if err != nil {
		return err
	}

	decShare, ui, proof, err := e.decodeDecShare(s)
	if err != nil {
		return ErrInvalidShare
	}
	if decShare.Index != index {
		return ErrShareIndexMismatch
	}

	return safe(func() error {
		public := e.public.Eval(index).V
		if err := proof.Verify(e.suite, e.suite.Point().Base(), u, public, ui); err != nil {
			return ErrInvalidShare
		}
		return nil
	})
}

func (e *ElGamal) Decrypt(ct []byte, shares map[int][]byte) ([]byte, error) {
	if len(shares) < e.t {
		return nil, ErrNotEnoughShares
	}

	encrypted, _, err := e.decodeCiphertext(ct)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(shares))
	for i := range shares {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	pubShares := make([]*share.PubShare, 0, len(indexes))
	for _, i := range indexes {
		_, ui, _, err := e.decodeDecShare(shares[i])
		if err != nil {
			return nil, ErrInvalidShare
		}
		pubShares = append(pubShares, &share.PubShare{I: i, V: ui})
	}

	shared, err := share.RecoverCommit(e.suite, pubShares, e.t, e.n)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(shared)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, encrypted.Nonce, encrypted.Payload, encrypted.U)
}

func (e *ElGamal) decodeCiphertext(ct []byte) (elGamalCiphertext, kyber.Point, error) {
	encrypted := elGamalCiphertext{}
	if err := json.Unmarshal(ct, &encrypted); err != nil {
		return elGamalCiphertext{}, nil, ErrInvalidCiphertext
	}
	if len(encrypted.Nonce) != 12 || len(encrypted.Payload) == 0 {
		return elGamalCiphertext{}, nil, ErrInvalidCiphertext
	}

	u := e.suite.Point()
	if err := u.UnmarshalBinary(encrypted.U); err != nil {
		return elGamalCiphertext{}, nil, ErrInvalidCiphertext
	}
	if u.Equal(e.suite.Point().Null()) {
		return elGamalCiphertext{}, nil, ErrInvalidCiphertext
	}
	return encrypted, u, nil
}

func (e *ElGamal) decodeDecShare(s []byte) (elGamalDecShare, kyber.Point, *dleq.Proof, error) {
	decShare := elGamalDecShare{}
	if err := json.Unmarshal(s, &decShare); err != nil {
		return elGamalDecShare{}, nil, nil, err
	}

	ui, vg, vh := e.suite.Point(), e.suite.Point(), e.suite.Point()
	c, r := e.suite.Scalar(), e.suite.Scalar()
	for _, field := range []struct {
		dst interface{ UnmarshalBinary([]byte) error }
		src []byte
	}{
		{ui, decShare.Ui},
		{c, decShare.C},
		{r, decShare.R},
		{vg, decShare.VG},
		{vh, decShare.VH},
	} {
		if err := field.dst.UnmarshalBinary(field.src); err != nil {
			return elGamalDecShare{}, nil, nil, err
		}
	}

	return decShare, ui, &dleq.Proof{C: c, R: r, VG: vg, VH: vh}, nil
}

func newGCM(shared kyber.Point) (cipher.AEAD, error) {
	b, err := shared.MarshalBinary()
	if err != nil {
		return nil, err
	}
	key := sha256.Sum256(b)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
