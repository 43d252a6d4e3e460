package rbc

import "errors"

var ErrInvalidType = errors.New("request type is invalid")
var ErrNoResult = errors.New("no result with address")
var ErrNotProposer = errors.New("only proposer can input value")
var ErrInputNotAccepted = errors.New("value is already proposed")

func IsErrNoResult(err error) bool {
	return err == ErrNoResult
}

var ErrInconsistentShards = errors.New("shards are not consistent with root hash")
var ErrInvalidLength = errors.New("invalid length prefix of value")
