package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"organicscan/config"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "organicscan.log")
	logger, err := New(config.Log{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("scan served")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"scan served"`) {
		t.Fatalf("missing info entry: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry written at info level: %s", out)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(config.Log{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(config.Log{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
