package honeybadger

import "errors"

var ErrAlreadyProposed = errors.New("contribution is already proposed in current epoch")
var ErrInvalidConfig = errors.New("invalid honeybadger config")

func IsErrAlreadyProposed(err error) bool {
	return err == ErrAlreadyProposed
}
