package transport

import (
	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DeviceInfo describes one USB device found during enumeration.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
}

// Discover lists attached USB devices matching vendorID (0 = any). It
// exists purely to let a CLI's -list flag show what's plugged in before
// attempting a HID open; actual report I/O always goes through go-hid,
// since gousb's interface-claiming model is the wrong fit for a device a
// kernel HID driver already owns.
func Discover(vendorID uint16) ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []DeviceInfo
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vendorID != 0 && uint16(desc.Vendor) != vendorID {
			return false
		}
		found = append(found, DeviceInfo{
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
			Bus:       desc.Bus,
			Address:   desc.Address,
		})
		return false // never actually open/claim; just inspect the descriptor
	})
	if err != nil {
		return nil, errors.Wrap(err, "transport: enumerate usb devices")
	}
	logrus.WithField("count", len(found)).Debug("transport: usb enumeration complete")
	return found, nil
}
