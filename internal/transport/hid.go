package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	hid "github.com/sstallion/go-hid"

	"uhbprog/internal/protocol"
)

// retryInterval is how often OpenHID retries while the device hasn't
// enumerated yet, matching the original tool's polling loop exactly.
const retryInterval = 200 * time.Millisecond

// HIDDevice is the real transport: a HID device opened by (vendor,
// product) id, exchanging fixed 64-byte reports.
type HIDDevice struct {
	dev *hid.Device
}

// OpenHID blocks, retrying every 200ms, until a device matching
// (vendorID, productID) enumerates or ctx is cancelled. This mirrors
// hid/generic.py's open_dev: a UHB device only appears on the bus once the
// board is reset into bootloader mode, so a single failed open is
// expected, not fatal.
func OpenHID(ctx context.Context, vendorID, productID uint16) (*HIDDevice, error) {
	if err := hid.Init(); err != nil {
		return nil, errors.Wrap(err, "transport: hid init")
	}
	for {
		dev, err := hid.OpenFirst(vendorID, productID)
		if err == nil {
			logrus.WithFields(logrus.Fields{"vendor": vendorID, "product": productID}).Info("transport: device attached")
			return &HIDDevice{dev: dev}, nil
		}
		logrus.WithFields(logrus.Fields{"vendor": vendorID, "product": productID}).Debug("transport: device not present, retrying")
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "transport: open cancelled")
		case <-time.After(retryInterval):
		}
	}
}

func (d *HIDDevice) Write(ctx context.Context, report []byte) error {
	if len(report) != protocol.FrameSize {
		return errors.Errorf("transport: report must be %d bytes, got %d", protocol.FrameSize, len(report))
	}
	// go-hid's Write expects a leading report-id byte; UHB devices are
	// report-id-less, so it is prefixed with 0x00 per sstallion/go-hid's
	// own convention for report-id-less HID devices.
	framed := append([]byte{0x00}, report...)
	_, err := d.dev.Write(framed)
	if err != nil {
		return errors.Wrap(err, "transport: hid write")
	}
	return nil
}

func (d *HIDDevice) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, protocol.FrameSize)
	n, err := d.dev.Read(buf)
	if err != nil {
		return nil, errors.Wrap(err, "transport: hid read")
	}
	if n < protocol.FrameSize {
		return nil, errors.Errorf("transport: short read, got %d bytes", n)
	}
	return buf, nil
}

func (d *HIDDevice) Close() error {
	return d.dev.Close()
}
