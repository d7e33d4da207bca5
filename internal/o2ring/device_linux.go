//go:build linux

package o2ring

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
)

// OpenAdapter opens the default HCI adapter for scanning and connecting.
func OpenAdapter() error {
	d, err := linux.NewDevice()
	if err != nil {
		return errors.Wrap(err, "failed to open ble")
	}
	ble.SetDefaultDevice(d)
	return nil
}

// CloseAdapter releases the adapter.
func CloseAdapter() {
	_ = ble.Stop()
}
