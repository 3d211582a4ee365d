package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPaths(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if !strings.HasSuffix(dataDir, ".yui") {
		t.Fatalf("unexpected data dir: %s", dataDir)
	}

	checks := map[string]func() (string, error){
		"config.toml":   ConfigPath,
		"sessions.db":   StorePath,
		"sessions.json": StoreFilePath,
		"ui.log":        UILogPath,
		"stream.log":    StreamLogPath,
	}
	for name, fn := range checks {
		path, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if want := filepath.Join(dataDir, name); path != want {
			t.Fatalf("unexpected path for %s: got=%q want=%q", name, path, want)
		}
	}
}
