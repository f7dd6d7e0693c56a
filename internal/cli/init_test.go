package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("chatty", &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if !strings.Contains(out, "Unknown log level") || !strings.Contains(out, "shown") || strings.Contains(out, "hidden") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KHOROCH_TEST_VALUE=from-file\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("KHOROCH_TEST_VALUE", "")
	os.Unsetenv("KHOROCH_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("KHOROCH_TEST_VALUE"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}

	// Missing files are ignored.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "khoroch.db"))
	t.Setenv("PAGE_SIZE", "0")

	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatalf("expected validation error for page size 0")
	}

	t.Setenv("PAGE_SIZE", "20")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("expected page size 20, got %d", cfg.PageSize)
	}
}
