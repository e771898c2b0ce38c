//go:build !linux

package decoder

import (
	"fmt"
	"os"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("serial capture source not supported on this platform")
}
