//go:build !linux

package capture

import "errors"

func openDevice(string) (Device, error) {
	return nil, errors.New("v4l2: supported only on linux")
}
