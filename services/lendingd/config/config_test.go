package config

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	testOwner = "mando1qyqszqgpqyqszqgpqyqszqgpqyqszqgplrynfz"
	testPool  = "mandomod1qgpqyqszqgpqyqszqgpqyqszqgpqyqszw7fmzd"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
owner: "`+testOwner+`"
pool: "`+testPool+`"
reserve_params: "reserves.toml"
storage:
  backend: " Memory "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("backend not normalized: %q", cfg.Storage.Backend)
	}
	if cfg.RateLimit.RequestsPerMinute != 600 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("rate limit defaults not applied: %+v", cfg.RateLimit)
	}
	if _, err := cfg.OwnerAddress(); err != nil {
		t.Fatalf("owner address: %v", err)
	}
	if _, err := cfg.PoolAddress(); err != nil {
		t.Fatalf("pool address: %v", err)
	}
}

func TestLoadConfigRequiresAddresses(t *testing.T) {
	path := writeConfig(t, `
listen: ":8545"
reserve_params: "reserves.toml"
storage:
  backend: memory
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when owner is missing")
	}

	path = writeConfig(t, `
owner: "`+testOwner+`"
reserve_params: "reserves.toml"
storage:
  backend: memory
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when pool is missing")
	}
}

func TestLoadConfigRejectsMalformedAddress(t *testing.T) {
	path := writeConfig(t, `
owner: "mando1notvalidbech32"
pool: "`+testPool+`"
reserve_params: "reserves.toml"
storage:
  backend: memory
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a bad bech32 owner")
	}
}

func TestLoadConfigValidatesStorage(t *testing.T) {
	path := writeConfig(t, `
owner: "`+testOwner+`"
pool: "`+testPool+`"
reserve_params: "reserves.toml"
storage:
  backend: leveldb
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when leveldb has no data_dir")
	}

	path = writeConfig(t, `
owner: "`+testOwner+`"
pool: "`+testPool+`"
reserve_params: "reserves.toml"
storage:
  backend: cassandra
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for an unsupported backend")
	}
}

func TestLoadConfigRequiresReserveParams(t *testing.T) {
	path := writeConfig(t, `
owner: "`+testOwner+`"
pool: "`+testPool+`"
storage:
  backend: memory
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when reserve_params is missing")
	}
}
