// Package config loads UHB device identifiers and session timeouts from
// the environment, with an optional .env file discovered by walking up
// from the working directory to the nearest go.mod.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the USB identifiers and timeouts a session needs to find
// and talk to a board. Zero values mean "not set"; callers decide the
// CLI-flag default to fall back to.
type Config struct {
	VendorID      uint16
	ProductID     uint16
	ReadTimeoutMs int
}

// Load reads UHB_VENDOR_ID, UHB_PRODUCT_ID and UHB_READ_TIMEOUT_MS from
// the process environment, first loading a discovered .env file (without
// overriding variables already set in the environment).
func Load() (Config, error) {
	loadDotEnv()

	var cfg Config
	if v, ok := os.LookupEnv("UHB_VENDOR_ID"); ok {
		n, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 16)
		if err != nil {
			return Config{}, err
		}
		cfg.VendorID = uint16(n)
	}
	if v, ok := os.LookupEnv("UHB_PRODUCT_ID"); ok {
		n, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 16)
		if err != nil {
			return Config{}, err
		}
		cfg.ProductID = uint16(n)
	}
	if v, ok := os.LookupEnv("UHB_READ_TIMEOUT_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, err
		}
		cfg.ReadTimeoutMs = n
	}
	return cfg, nil
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// loadDotEnv reads KEY=VALUE lines from <project root>/.env, setting only
// variables not already present in the environment. Missing or unreadable
// .env files are silently ignored: they're an optional convenience, not a
// required input.
func loadDotEnv() {
	root, ok := findProjectRoot()
	if !ok {
		return
	}
	f, err := os.Open(filepath.Join(root, ".env"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, val)
		}
	}
}
