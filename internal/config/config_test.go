package config

import "testing"

func TestLoadParsesHexVendorAndProduct(t *testing.T) {
	t.Setenv("UHB_VENDOR_ID", "0x1234")
	t.Setenv("UHB_PRODUCT_ID", "5678")
	t.Setenv("UHB_READ_TIMEOUT_MS", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VendorID != 0x1234 {
		t.Fatalf("VendorID = %#x, want 0x1234", cfg.VendorID)
	}
	if cfg.ProductID != 0x5678 {
		t.Fatalf("ProductID = %#x, want 0x5678", cfg.ProductID)
	}
	if cfg.ReadTimeoutMs != 2500 {
		t.Fatalf("ReadTimeoutMs = %d, want 2500", cfg.ReadTimeoutMs)
	}
}

func TestLoadLeavesUnsetFieldsZero(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VendorID != 0 || cfg.ProductID != 0 || cfg.ReadTimeoutMs != 0 {
		t.Fatalf("expected zero Config with no env set, got %+v", cfg)
	}
}
