//go:build !linux && !darwin

package goble

import (
	"errors"

	goble "github.com/go-ble/ble"
)

func newAdapter(_ string) (goble.Device, error) {
	return nil, errors.New("the goble backend is not supported on this platform")
}
