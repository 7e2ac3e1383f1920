// Package utils holds small helpers shared by the comet packages.
package utils

// ConstError is an error usable as a constant sentinel:
//
//	const ErrClosed = utils.ConstError("closed")
//
// Values compare by message, so errors.Is matches wrapped sentinels.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}
