package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMergesLocalOverGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "global.toml", `
tcp_address = "0.0.0.0:34254"
db_path = "/var/lib/ehash/pool.db"
`)
	local := writeFile(t, dir, "local.toml", `
db_path = "./pool.db"
`)

	var cfg Pool
	if err := Load(&cfg, global, local); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TCPAddress != "0.0.0.0:34254" {
		t.Fatalf("TCPAddress = %q, want global value to survive", cfg.TCPAddress)
	}
	if cfg.DBPath != "./pool.db" {
		t.Fatalf("DBPath = %q, want local override", cfg.DBPath)
	}
}

func TestLoadToleratesMissingFiles(t *testing.T) {
	var cfg Pool
	if err := Load(&cfg, "/nonexistent/global.toml", "/nonexistent/local.toml"); err != nil {
		t.Fatalf("Load with missing files = %v, want nil", err)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	if err := RequireNonEmpty(map[string]string{"tcp_address": ""}); err == nil {
		t.Fatalf("expected error for empty field")
	}
	if err := RequireNonEmpty(map[string]string{"tcp_address": "0.0.0.0:1"}); err != nil {
		t.Fatalf("RequireNonEmpty = %v, want nil", err)
	}
}
