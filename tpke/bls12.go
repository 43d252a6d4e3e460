package tpke

import (
	"strconv"

	"github.com/DE-labtory/tpke"
	"github.com/DE-labtory/tpke/bls"
)

const (
	bls12DecShareSize  = 96
	bls12PublicKeySize = 96
	bls12SecretSize    = 32
	bls12MinCiphertext = 288
)

// Bls12 is threshold encryption of DE-labtory/tpke on BLS12-381. A
// decryption share of member i is accepted only if
// e(share, H(U, V)) == e(pk_i, W).
type Bls12 struct {
	index int
	// t is the number of shares needed to decrypt
	t int

	publicKeySet    *tpke.PublicKeySet
	publicKey       *tpke.PublicKey
	publicKeyShares []*tpke.PublicKey
	secretKey       *tpke.SecretKeyShare
}

// Bls12Share is the secret key share, serialized public key set and public
// key share of every member
type Bls12Share struct {
	Secret          []byte   `json:"secret"`
	PublicKeySet    []byte   `json:"publicKeySet"`
	PublicKeyShares [][]byte `json:"publicKeyShares"`
}

// bls12ShareID is the evaluation point of member index. Zero is the point
// of the master secret, so members start at one.
func bls12ShareID(index int) string {
	return strconv.Itoa(index + 1)
}

func newBls12Share(sks *tpke.SecretKeySet, n, index int) *Bls12Share {
	publicKeyShares := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		pk := tpke.NewSecretKeyFromBytes(sks.KeyShareUsingString(bls12ShareID(i)).Serialize()).PublicKey().Serialize()
		publicKeyShares = append(publicKeyShares, pk[:])
	}

	secret := sks.KeyShareUsingString(bls12ShareID(index)).Serialize()
	return &Bls12Share{
		Secret:          secret[:],
		PublicKeySet:    sks.PublicKeySet().Serialize(),
		PublicKeyShares: publicKeyShares,
	}
}

func NewBls12(n, f, index int, key Bls12Share) (*Bls12, error) {
	if len(key.Secret) != bls12SecretSize || len(key.PublicKeyShares) != n {
		return nil, ErrInvalidKeyShare
	}
	secret := [bls12SecretSize]byte{}
	copy(secret[:], key.Secret)

	pks, err := tpke.NewPublicKeySetFromBytes(key.PublicKeySet)
	if err != nil {
		return nil, err
	}

	publicKeyShares := make([]*tpke.PublicKey, 0, n)
	for _, b := range key.PublicKeyShares {
		if len(b) != bls12PublicKeySize {
			return nil, ErrInvalidKeyShare
		}
		pk := [bls12PublicKeySize]byte{}
		copy(pk[:], b)
		publicKeyShares = append(publicKeyShares, tpke.NewPublicKeyFromBytes(pk))
	}

	return &Bls12{
		index:           index,
		t:               f + 1,
		publicKeySet:    pks,
		publicKey:       pks.PublicKey(),
		publicKeyShares: publicKeyShares,
		secretKey:       tpke.NewSecretKeyShare(tpke.NewSecretKeyFromBytes(secret)),
	}, nil
}

func (b *Bls12) Index() int {
	return b.index
}

// Encrypt encrypts some byte array message.
func (b *Bls12) Encrypt(msg []byte) ([]byte, error) {
	encrypted, err := b.publicKey.Encrypt(msg)
	if err != nil {
		return nil, err
	}
	return encrypted.Serialize(), nil
}

// VerifyCiphertext checks W is the hash of (U, V) raised to the same
// randomness as U
func (b *Bls12) VerifyCiphertext(ct []byte) error {
	if len(ct) < bls12MinCiphertext {
		return ErrInvalidCiphertext
	}
	valid := false
	err := safe(func() error {
		valid = tpke.NewCipherTextFromBytes(ct).Verify()
		return nil
	})
	if err != nil || !valid {
		return ErrInvalidCiphertext
	}
	return nil
}

// DecShare makes decryption share using secret key share.
func (b *Bls12) DecShare(ct []byte) ([]byte, error) {
	if err := b.VerifyCiphertext(ct); err != nil {
		return nil, err
	}

	var decShare [bls12DecShareSize]byte
	err := safe(func() error {
		decShare = b.secretKey.DecryptShare(tpke.NewCipherTextFromBytes(ct)).Serialize()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decShare[:], nil
}

func (b *Bls12) VerifyDecShare(index int, ct []byte, s []byte) error {
	if index < 0 || index >= len(b.publicKeyShares) {
		return ErrShareIndexMismatch
	}
	if len(s) != bls12DecShareSize {
		return ErrInvalidShare
	}
	if err := b.VerifyCiphertext(ct); err != nil {
		return err
	}

	return safe(func() error {
		cipherText := tpke.NewCipherTextFromBytes(ct)
		compressed := bls.CompressG1(cipherText.U.ToAffine())
		hash := bls.HashG2(append(compressed[:], cipherText.V...)).ToProjective()

		left := bls.Pairing(toBls12DecShare(s).G1, hash)
		right := bls.Pairing(b.publicKeyShares[index].G1, &cipherText.W)
		if !left.Equals(right) {
			return ErrInvalidShare
		}
		return nil
	})
}

// Decrypt collects decryption share, and combine it for decryption.
func (b *Bls12) Decrypt(ct []byte, shares map[int][]byte) ([]byte, error) {
	if len(shares) < b.t {
		return nil, ErrNotEnoughShares
	}

	var result []byte
	err := safe(func() error {
		decShares := make(map[string]*tpke.DecryptionShare)
		for i, s := range shares {
			decShares[bls12ShareID(i)] = toBls12DecShare(s)
		}

		var err error
		result, err = b.publicKeySet.DecryptUsingStringMap(decShares, tpke.NewCipherTextFromBytes(ct))
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func toBls12DecShare(s []byte) *tpke.DecryptionShare {
	decShare := [bls12DecShareSize]byte{}
	copy(decShare[:], s)
	return tpke.NewDecryptionShareFromBytes(decShare)
}
