package tpke

import (
	"errors"
	"fmt"
)

var ErrUnknownScheme = errors.New("unknown threshold encryption scheme")
var ErrInvalidShare = errors.New("invalid share")
var ErrShareIndexMismatch = errors.New("share index does not match sender")
var ErrNotEnoughShares = errors.New("not enough shares")
var ErrInvalidCiphertext = errors.New("invalid ciphertext")
var ErrInvalidKeyShare = errors.New("invalid key share")

func IsErrInvalidShare(err error) bool {
	return errors.Is(err, ErrInvalidShare) || errors.Is(err, ErrShareIndexMismatch)
}

// safe runs fn and turns a panic of third-party decoding into an error
func safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidShare, r)
		}
	}()
	return fn()
}
