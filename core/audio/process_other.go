//go:build !unix

package audio

import (
	"errors"
	"os"
)

var errPauseUnsupported = errors.New("pausing a process is not supported on this platform")

func pauseProcess(*os.Process) error {
	return errPauseUnsupported
}

func resumeProcess(*os.Process) error {
	return errPauseUnsupported
}
