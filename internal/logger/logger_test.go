package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLBeforeInit(t *testing.T) {
	saved := Log
	Log = nil
	defer func() { Log = saved }()

	if L() == nil {
		t.Fatal("L() must never return nil")
	}
	L().Debugf("discarded %d", 1)
}

func TestInitWritesFile(t *testing.T) {
	saved := Log
	defer func() { Log = saved }()

	path := filepath.Join(t.TempDir(), "switchpac.log")
	Init(true, path)
	L().Debugw("compiled", "profile", "auto")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, "compiled") {
		t.Errorf("unexpected log output: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("file logs must not contain color codes: %q", out)
	}
}
