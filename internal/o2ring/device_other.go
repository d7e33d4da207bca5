//go:build !linux

package o2ring

import "github.com/pkg/errors"

// OpenAdapter is only implemented for Linux HCI adapters.
func OpenAdapter() error {
	return errors.New("ble adapter not supported on this platform")
}

// CloseAdapter is a no-op.
func CloseAdapter() {}
