package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriteReplacesContents(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "notified_products.json")
	b := NewFileBackend(path)

	for _, content := range []string{`{"a":{}}`, `{"b":{}}`} {
		if err := b.Write(ctx, []byte(content)); err != nil {
			t.Fatalf("Write(%s) error: %v", content, err)
		}
		got, err := b.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		if string(got) != content {
			t.Errorf("Read() = %s, want %s", got, content)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the ledger file", len(entries))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
}

func TestSyncDir(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{name: "existing directory", dir: t.TempDir()},
		{name: "missing directory", dir: filepath.Join(t.TempDir(), "gone"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := syncDir(tt.dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("syncDir() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
