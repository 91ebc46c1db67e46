package nodecfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got %v", err)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	cases := []Config{
		{RPCAddr: "x", LogLevel: "info", MempoolSize: 1, MaxBlockTxs: 1},
		{DataDir: "d", LogLevel: "info", MempoolSize: 1, MaxBlockTxs: 1},
		{DataDir: "d", RPCAddr: "x", LogLevel: "info", MempoolSize: 0, MaxBlockTxs: 1},
		{DataDir: "d", RPCAddr: "x", LogLevel: "info", MempoolSize: 1, MaxBlockTxs: 0},
		{DataDir: "d", RPCAddr: "x", LogLevel: "bogus", MempoolSize: 1, MaxBlockTxs: 1},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, c)
		}
	}
}

func TestLoadFileOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chaind.toml")
	contents := "RPCAddr = \"0.0.0.0:9000\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RPCAddr != "0.0.0.0:9000" {
		t.Fatalf("RPCAddr = %q, want override applied", cfg.RPCAddr)
	}
	if cfg.DataDir != DefaultConfig().DataDir {
		t.Fatalf("DataDir should remain default, got %q", cfg.DataDir)
	}
}
