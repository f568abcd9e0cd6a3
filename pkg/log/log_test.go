package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInitWritesJSONToOutputDir(t *testing.T) {
	dir := t.TempDir()
	if err := Init("info", "json", dir); err != nil {
		t.Fatalf("Init err: %v", err)
	}
	t.Cleanup(func() { Use(zap.NewNop()) })

	Infow("session created", "session", "abc")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"session created"`) || !strings.Contains(string(data), `"session":"abc"`) {
		t.Fatalf("unexpected log output: %s", data)
	}
}
