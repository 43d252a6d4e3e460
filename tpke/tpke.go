package tpke

const (
	SchemeElGamal = "elgamal"
	SchemeBls12   = "bls12"
)

// ThresholdSigner produces signature shares which are combined into a
// unique signature once f+1 valid shares are collected.
type ThresholdSigner interface {
	Index() int
	SignShare(msg []byte) ([]byte, error)
	VerifySignatureShare(index int, msg []byte, share []byte) error
	// CombineSignatures expects shares already verified, keyed by signer index
	CombineSignatures(msg []byte, shares map[int][]byte) ([]byte, error)
	VerifySignature(msg []byte, sig []byte) error
}

// ThresholdEncryption encrypts with the group public key, decryption needs
// f+1 decryption shares of different members.
type ThresholdEncryption interface {
	Index() int
	Encrypt(msg []byte) ([]byte, error)
	VerifyCiphertext(ct []byte) error
	DecShare(ct []byte) ([]byte, error)
	VerifyDecShare(index int, ct []byte, share []byte) error
	// Decrypt expects shares already verified, keyed by member index
	Decrypt(ct []byte, shares map[int][]byte) ([]byte, error)
}

// Provider is the set of threshold primitives of one node
type Provider struct {
	Signer     ThresholdSigner
	Encryption ThresholdEncryption
}

// New builds provider from the key share of node. Signature scheme is always
// threshold BLS on bn256, encryption scheme is chosen by the key share.
func New(keyShare *KeyShare) (*Provider, error) {
	if err := keyShare.validate(); err != nil {
		return nil, err
	}

	signer, err := NewBLSSigner(keyShare.N, keyShare.F, keyShare.Index, keyShare.Sign)
	if err != nil {
		return nil, err
	}

	var encryption ThresholdEncryption
	switch keyShare.Scheme {
	case SchemeElGamal, "":
		encryption, err = NewElGamal(keyShare.N, keyShare.F, keyShare.Index, *keyShare.ElGamal)
	case SchemeBls12:
		encryption, err = NewBls12(keyShare.N, keyShare.F, keyShare.Index, *keyShare.Bls12)
	default:
		return nil, ErrUnknownScheme
	}
	if err != nil {
		return nil, err
	}

	return &Provider{
		Signer:     signer,
		Encryption: encryption,
	}, nil
}
