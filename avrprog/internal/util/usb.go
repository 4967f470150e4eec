// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	usb "github.com/google/gousb"
)

var (
	ErrNoUSBDevice   = errors.New("no matching USB device")
	ErrManyUSBDevice = errors.New("more than one matching USB device, select one with BUS:ADDR")
)

// parseBusAddr parses the BUS:ADDR pair printed by lsusb. It returns -1, -1
// if busAddr is malformed.
func parseBusAddr(busAddr string) (bus, addr int) {
	b, a, ok := strings.Cut(busAddr, ":")
	if !ok {
		return -1, -1
	}
	bu, err := strconv.ParseUint(b, 10, 8)
	if err != nil {
		return -1, -1
	}
	ad, err := strconv.ParseUint(a, 10, 8)
	if err != nil {
		return -1, -1
	}
	return int(bu), int(ad)
}

// pickOne returns the only element of devs. Otherwise it closes all of them
// and reports why none was chosen.
func pickOne[T io.Closer](devs []T) (T, error) {
	var zero T
	if len(devs) == 1 {
		return devs[0], nil
	}
	for _, d := range devs {
		d.Close()
	}
	if len(devs) == 0 {
		return zero, ErrNoUSBDevice
	}
	return zero, fmt.Errorf("%w (found %d)", ErrManyUSBDevice, len(devs))
}

// OpenUSB opens the single device with the given vendor and product IDs. If
// busAddr is not empty only the device at that USB bus:address is
// considered. The returned context must be closed after the device.
func OpenUSB(vendor, product usb.ID, busAddr string) (*usb.Context, *usb.Device, error) {
	bus, addr := parseBusAddr(busAddr)
	if busAddr != "" && bus < 0 {
		return nil, nil, fmt.Errorf("bad USB device address %q, want BUS:ADDR", busAddr)
	}
	ctx := usb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *usb.DeviceDesc) bool {
		if bus >= 0 && (desc.Bus != bus || desc.Address != addr) {
			return false
		}
		return desc.Vendor == vendor && desc.Product == product
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		return nil, nil, err
	}
	dev, err := pickOne(devs)
	if err != nil {
		ctx.Close()
		return nil, nil, fmt.Errorf("%04x:%04x: %w", uint16(vendor), uint16(product), err)
	}
	return ctx, dev, nil
}
