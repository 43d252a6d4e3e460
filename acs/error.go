package acs

import "errors"

var ErrNoMemberMatchingRequest = errors.New("no member matching request")
