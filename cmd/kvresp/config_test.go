package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigOverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvresp.json")
	body := `{"listen":":7000","maxconnections":10,"statsperiod":30}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config := Config{Listen: ":6379", MaxConnections: 250}
	if err := parseJSONConfig(&config, path); err != nil {
		t.Fatalf("parseJSONConfig: %v", err)
	}

	if config.Listen != ":7000" {
		t.Fatalf("expected listen override, got %q", config.Listen)
	}
	if config.MaxConnections != 10 {
		t.Fatalf("expected maxconnections override, got %d", config.MaxConnections)
	}
	if config.StatsPeriod != 30 {
		t.Fatalf("expected statsperiod override, got %d", config.StatsPeriod)
	}
}

func TestParseJSONConfigMissingFileReturnsError(t *testing.T) {
	config := Config{}
	if err := parseJSONConfig(&config, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
