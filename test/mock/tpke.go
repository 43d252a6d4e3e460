package mock

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidShare = errors.New("invalid mock share")

// Signer is a ThresholdSigner whose shares are plain text. SigFunc decides
// the combined signature, message itself is used when it is nil.
type Signer struct {
	Idx     int
	T       int
	SigFunc func(msg []byte) []byte
}

func (s *Signer) Index() int {
	return s.Idx
}

func (s *Signer) SignShare(msg []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("%d|%s", s.Idx, msg)), nil
}

func (s *Signer) VerifySignatureShare(index int, msg []byte, share []byte) error {
	if !bytes.Equal(share, []byte(fmt.Sprintf("%d|%s", index, msg))) {
		return ErrInvalidShare
	}
	return nil
}

func (s *Signer) CombineSignatures(msg []byte, shares map[int][]byte) ([]byte, error) {
	if len(shares) < s.T {
		return nil, errors.New("not enough shares")
	}
	if s.SigFunc != nil {
		return s.SigFunc(msg), nil
	}
	return msg, nil
}

func (s *Signer) VerifySignature(msg []byte, sig []byte) error {
	return nil
}

// Encryption is a ThresholdEncryption which only prefixes plain text
type Encryption struct {
	Idx int
	T   int
}

var prefix = []byte("mock:")

func (e *Encryption) Index() int {
	return e.Idx
}

func (e *Encryption) Encrypt(msg []byte) ([]byte, error) {
	return append(append([]byte{}, prefix...), msg...), nil
}

func (e *Encryption) VerifyCiphertext(ct []byte) error {
	if !bytes.HasPrefix(ct, prefix) {
		return errors.New("invalid mock ciphertext")
	}
	return nil
}

func (e *Encryption) DecShare(ct []byte) ([]byte, error) {
	if err := e.VerifyCiphertext(ct); err != nil {
		return nil, err
	}
	return []byte(strconv.Itoa(e.Idx)), nil
}

func (e *Encryption) VerifyDecShare(index int, ct []byte, share []byte) error {
	if !bytes.Equal(share, []byte(strconv.Itoa(index))) {
		return ErrInvalidShare
	}
	return e.VerifyCiphertext(ct)
}

func (e *Encryption) Decrypt(ct []byte, shares map[int][]byte) ([]byte, error) {
	if len(shares) < e.T {
		return nil, errors.New("not enough shares")
	}
	if err := e.VerifyCiphertext(ct); err != nil {
		return nil, err
	}
	return ct[len(prefix):], nil
}
