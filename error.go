package hbbft

import "errors"

var ErrUndefinedRequestType = errors.New("unexpected request type")
var ErrUnknownSender = errors.New("sender is not a member")
var ErrMalformedMessage = errors.New("malformed message")
var ErrEmptyQueue = errors.New("queue is empty")
