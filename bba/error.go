package bba

import (
	"errors"
)

var ErrInvalidType = errors.New("request type is invalid")
var ErrNoResult = errors.New("no result with id")
var ErrInputNotAccepted = errors.New("bba does not accept input")

func IsErrNoResult(err error) bool {
	return err == ErrNoResult
}
