// uhbprog flashes a MikroElektronika USB HID Bootloader board from an
// Intel HEX image.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"uhbprog/internal/config"
	"uhbprog/internal/session"
	"uhbprog/internal/transport"
)

// Configuration flags
var (
	hexPath           = flag.String("hex", "", "path to the Intel HEX image to flash (omit to just query board info)")
	vendorID          = flag.Uint("vendor", 0, "USB vendor id (hex, e.g. 0x1234); falls back to UHB_VENDOR_ID")
	productID         = flag.Uint("product", 0, "USB product id (hex, e.g. 0x5678); falls back to UHB_PRODUCT_ID")
	disableBootloader = flag.Bool("disable-bootloader", false, "leave the flashed application standalone, without chaining back to the bootloader")
	list              = flag.Bool("list", false, "list attached USB devices and exit")
	timeoutFlag       = flag.Duration("timeout", 30*time.Second, "how long to wait for the board to attach before giving up")
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("uhbprog: loading configuration")
	}

	vendor := uint16(*vendorID)
	if vendor == 0 {
		vendor = cfg.VendorID
	}
	product := uint16(*productID)
	if product == 0 {
		product = cfg.ProductID
	}

	if *list {
		devices, err := transport.Discover(vendor)
		if err != nil {
			logrus.WithError(err).Fatal("uhbprog: enumerating usb devices")
		}
		for _, d := range devices {
			logrus.WithFields(logrus.Fields{
				"vendor":  d.VendorID,
				"product": d.ProductID,
				"bus":     d.Bus,
				"address": d.Address,
			}).Info("uhbprog: found device")
		}
		return
	}

	if vendor == 0 || product == 0 {
		logrus.Fatal("uhbprog: -vendor/-product (or UHB_VENDOR_ID/UHB_PRODUCT_ID) are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	dev, err := transport.OpenHID(ctx, vendor, product)
	if err != nil {
		logrus.WithError(err).Fatal("uhbprog: opening device")
	}
	defer dev.Close()

	// hexInput stays a true nil io.Reader (not a non-nil interface
	// wrapping a nil *os.File) when no -hex path was given, so
	// session.Program's hexInput == nil check works.
	var hexInput io.Reader
	infoOnly := *hexPath == ""
	if !infoOnly {
		hexFile, err := os.Open(*hexPath)
		if err != nil {
			logrus.WithError(err).Fatal("uhbprog: opening hex image")
		}
		defer hexFile.Close()
		hexInput = hexFile
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer runCancel()

	if err := session.Program(runCtx, dev, hexInput, infoOnly, *disableBootloader); err != nil {
		logrus.WithError(err).Fatal("uhbprog: programming failed")
	}
	logrus.Info("uhbprog: done")
}
